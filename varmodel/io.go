package varmodel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// LoadCSVToTimeSeries reads a CSV file whose first row is a variable-name
// header and whose remaining rows are numeric observations; there is no
// explicit time column, so time is taken as 0,1,2,....
func LoadCSVToTimeSeries(path string) (*TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("varmodel: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("varmodel: read header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("varmodel: empty header in %s", path)
	}
	K := len(header)

	var data []float64
	var times []float64
	row := 0

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("varmodel: read row %d: %w", row+2, err)
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != K {
			return nil, fmt.Errorf("varmodel: row %d: expected %d columns, got %d", row+2, K, len(record))
		}
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("varmodel: parse float at row %d col %d (%q): %w", row+2, j+1, s, err)
			}
			data = append(data, v)
		}
		times = append(times, float64(row))
		row++
	}
	if row == 0 {
		return nil, fmt.Errorf("varmodel: no data rows in %s", path)
	}

	return &TimeSeries{
		Y:        mat.NewDense(row, K, data),
		Time:     times,
		VarNames: header,
	}, nil
}

// PrintCoefficients prints the fitted lag and covariance matrices.
func (rf *ReducedFormVAR) PrintCoefficients() {
	for i, Ai := range rf.A {
		fmt.Printf("\n=== A_%d ===\n", i+1)
		fmt.Printf("%v\n", mat.Formatted(Ai, mat.Prefix(" ")))
	}
	fmt.Println("\n=== Covariance Matrix Sigma_u ===")
	fmt.Printf("%v\n", mat.Formatted(rf.SigmaU, mat.Prefix(" ")))
}

// PrintForecast prints a forecast matrix.
func PrintForecast(fc *mat.Dense) {
	fmt.Println("\n=== Forecast Matrix ===")
	fmt.Printf("%v\n", mat.Formatted(fc, mat.Prefix(" ")))
}

// PrintIRF prints the impulse response of every variable to a shock in
// varNames[shockIndex].
func PrintIRF(irf *mat.Dense, varNames []string, shockIndex int) {
	name := fmt.Sprintf("Var%d", shockIndex+1)
	if shockIndex >= 0 && shockIndex < len(varNames) {
		name = varNames[shockIndex]
	}
	fmt.Printf("\n=== IRF: shock in %s ===\n", name)
	fmt.Printf("%v\n", mat.Formatted(irf, mat.Prefix(" ")))
}

// Summary prints coefficients and a pairwise Granger causality matrix.
func (rf *ReducedFormVAR) Summary(ts *TimeSeries) {
	rf.PrintCoefficients()
	gc, err := rf.GrangerCausalityMatrix(ts)
	if err != nil {
		fmt.Println("varmodel: granger causality matrix failed:", err)
		return
	}
	fmt.Println("\n=== Granger Causality (p-values) ===")
	for i, row := range gc {
		for j, r := range row {
			if r == nil {
				continue
			}
			fmt.Printf("%s -> %s: F=%.4f p=%.4f significant=%t\n", ts.VarNames[i], ts.VarNames[j], r.FStatistic, r.PValue, r.Significant)
			_ = j
		}
	}
}
