package varmodel

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// OutputForecastsToCSV writes a forecast matrix to path, one row per
// forecast step.
func (rf *ReducedFormVAR) OutputForecastsToCSV(path string, fc *mat.Dense, varNames []string) error {
	rows, cols := fc.Dims()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := make([]string, cols)
	for j := 0; j < cols; j++ {
		if len(varNames) == cols {
			header[j] = varNames[j]
		} else {
			header[j] = fmt.Sprintf("Var%d", j+1)
		}
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		record := make([]string, cols)
		for j := 0; j < cols; j++ {
			record[j] = fmt.Sprintf("%f", fc.At(i, j))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// OutputIRFAnalysisToCSV writes a RunIRFAnalysis result to path, one
// column per shock variable.
func (rf *ReducedFormVAR) OutputIRFAnalysisToCSV(path string, analysis map[int][]float64, varNames []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	shocks := make([]int, 0, len(analysis))
	for shockIdx := range analysis {
		shocks = append(shocks, shockIdx)
	}
	sort.Ints(shocks)

	header := []string{"Horizon"}
	for _, shockIdx := range shocks {
		varName := fmt.Sprintf("Var%d", shockIdx+1)
		if len(varNames) == len(analysis) {
			varName = varNames[shockIdx]
		}
		header = append(header, "Shock_in_"+varName)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	var horizon int
	for _, series := range analysis {
		horizon = len(series)
		break
	}

	for h := 0; h < horizon; h++ {
		record := []string{fmt.Sprintf("%d", h)}
		for _, shockIdx := range shocks {
			record = append(record, fmt.Sprintf("%f", analysis[shockIdx][h]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// OutputGrangerMatrixToCSV writes a GrangerCausalityMatrix result to
// path.
func (rf *ReducedFormVAR) OutputGrangerMatrixToCSV(path string, gcMatrix [][]*GrangerCausalityResult, varNames []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"CauseVar", "EffectVar", "FStatistic", "PValue", "Lags", "Significant"}
	if err := writer.Write(header); err != nil {
		return err
	}

	K := len(varNames)
	for i := 0; i < K; i++ {
		for j := 0; j < K; j++ {
			if i == j {
				continue
			}
			result := gcMatrix[i][j]
			if result == nil {
				continue
			}
			record := []string{
				result.CauseVar,
				result.EffectVar,
				fmt.Sprintf("%f", result.FStatistic),
				fmt.Sprintf("%f", result.PValue),
				fmt.Sprintf("%d", result.Lags),
				fmt.Sprintf("%t", result.Significant),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}
