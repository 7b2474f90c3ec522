package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"biaseval/pkg/models"
)

// persist drains the result queue and appends each result as one JSON line.
// Every field serializes through an explicit conversion policy; a value
// outside it (an unknown enumeration, say) fails the marshal and is fatal,
// because it indicates a defect upstream, not a recoverable condition.
// Each record is a single write, so a crash can lose only results not yet
// flushed, never corrupt lines already written.
func (p *Pipeline) persist(file *os.File, stop <-chan struct{}) {
	for {
		select {
		case result, ok := <-p.results:
			if !ok {
				return
			}
			p.writeResult(file, result)
		case <-stop:
			// Workers were abandoned; save whatever is already buffered.
			for {
				select {
				case result := <-p.results:
					p.writeResult(file, result)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) writeResult(file *os.File, result models.Result) {
	defer p.releaseOutstanding()

	data, err := json.Marshal(result)
	if err != nil {
		p.fail(fmt.Errorf("failed to serialize result for item %d: %w", result.Item.ID, err))
		return
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		p.fail(fmt.Errorf("failed to append result for item %d: %w", result.Item.ID, err))
		return
	}

	p.stats.persisted.Add(1)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncrementPersisted()
		p.cfg.Metrics.SetQueueDepth("results", len(p.results))
	}
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(result)
	}
}
