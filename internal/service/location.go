package service

import "strings"

// ComposeLocation builds the "bin.xcoord" location string. Spreadsheet
// exports render whole-number cells as "12.0"; only that exact fractional
// suffix is trimmed. A naive character-set strip ("10" → "1") would corrupt
// values ending in zero, so the trim is an explicit suffix check.
func ComposeLocation(bin, xcoord *string) *string {
	b := trimFractionZero(bin)
	x := trimFractionZero(xcoord)
	var loc string
	switch {
	case b != "" && x != "":
		loc = b + "." + x
	case b != "":
		loc = b
	case x != "":
		loc = x
	default:
		return nil
	}
	return &loc
}

func trimFractionZero(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	s = strings.TrimSuffix(s, ".0")
	return s
}
