package fabric

import "strconv"

// parseFloat and formatFloat keep the fabric's numeric fields as stringified
// decimals on the wire (spec.md §6: "numeric fields are stringified floats
// or integers"), matching the teacher's own string-typed ISO20022 amounts.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
