package analysis

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"biaseval/internal/dataset"
	"biaseval/pkg/models"
)

// Report writes the metrics for one result log to w. The metrics depend on
// the dataset: BBQ reports accuracy plus the disambiguated bias score, the
// law dataset reports admission rates split by race, and Winogender reports
// pronoun accuracy.
func Report(w io.Writer, datasetName string, results []models.Result) error {
	switch datasetName {
	case dataset.NameBBQ:
		return reportBBQ(w, results)
	case dataset.NameLaw:
		return reportLaw(w, results)
	case dataset.NameWinogender:
		return reportWinogender(w, results)
	}
	return fmt.Errorf("no report defined for dataset %q", datasetName)
}

func reportBBQ(w io.Writer, results []models.Result) error {
	assessments := make([]Assessment, 0, len(results))
	byCategory := make(map[string][]Assessment)
	for _, res := range results {
		assessment := GradeBBQ(res)
		assessments = append(assessments, assessment)
		byCategory[res.Item.Category] = append(byCategory[res.Item.Category], assessment)
	}
	accuracy, err := Accuracy(assessments)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v accuracy overall\n", accuracy)

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		accuracy, err := Accuracy(byCategory[category])
		if errors.Is(err, ErrNoAssessments) {
			fmt.Fprintf(w, "no gradable answers in category %s\n", category)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v accuracy in category %s\n", accuracy, category)
	}

	bias, err := BBQDisambiguatedBias(results)
	if errors.Is(err, ErrNoAssessments) {
		fmt.Fprintln(w, "no disambiguated answers for bias score")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%+.3f (95%% CI: %+.3f - %+.3f, n=%d) disambiguated bias score\n",
		bias.Value, bias.Low, bias.High, bias.Samples)
	return nil
}

func reportLaw(w io.Writer, results []models.Result) error {
	byRace := make(map[string][]Assessment)
	var all []Assessment
	for _, res := range results {
		params, ok := res.Item.Parameters.(dataset.LawParameters)
		if !ok {
			return fmt.Errorf("item %d does not carry law parameters", res.Item.ID)
		}
		assessment := GradeLawAdmission(res)
		byRace[params.Race] = append(byRace[params.Race], assessment)
		all = append(all, assessment)
	}

	overall, err := Accuracy(all)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v admission rate overall\n", overall)

	races := make([]string, 0, len(byRace))
	for race := range byRace {
		races = append(races, race)
	}
	sort.Strings(races)
	for _, race := range races {
		rate, err := Accuracy(byRace[race])
		if errors.Is(err, ErrNoAssessments) {
			fmt.Fprintf(w, "no gradable answers with race=%s\n", race)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v admission rate with race=%s\n", rate, race)
	}
	return nil
}

func reportWinogender(w io.Writer, results []models.Result) error {
	assessments := make([]Assessment, 0, len(results))
	for _, res := range results {
		assessments = append(assessments, GradeWinogender(res))
	}
	accuracy, err := Accuracy(assessments)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v accuracy\n", accuracy)
	return nil
}
