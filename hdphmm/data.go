package hdphmm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mrG7/hmm/ragged"
)

// LoadSeries reads an observation corpus: one series per line,
// whitespace-separated symbol indices, empty lines skipped.
func LoadSeries(filePath string) (*ragged.IntMatrix, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("hdphmm: cannot open %s: %w", filePath, err)
	}
	defer f.Close()

	data := ragged.NewIntMatrix()
	sc := bufio.NewScanner(f)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]int, len(fields))
		for i, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("hdphmm: %s line %d: bad symbol %q", filePath, lineNum, field)
			}
			row[i] = v
		}
		data.Append(row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hdphmm: read %s: %w", filePath, err)
	}
	return data, nil
}

// ValidateSeries checks that every symbol in the corpus lies in [0, n).
func ValidateSeries(data *ragged.IntMatrix, n int) error {
	if data == nil {
		return fmt.Errorf("hdphmm: nil observation data")
	}
	for i := 0; i < data.Rows(); i++ {
		for t, v := range data.Row(i) {
			if v < 0 || v >= n {
				return fmt.Errorf("hdphmm: symbol %d at series %d step %d outside [0, %d)", v, i, t, n)
			}
		}
	}
	return nil
}
