package imaging

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	placeholderPrefix = "placeholder_"
	svgContentType    = "image/svg+xml"
)

type swatch struct {
	background string
	foreground string
}

var palette = []swatch{
	{background: "#F4E1D2", foreground: "#7A4B2A"},
	{background: "#DCE8F2", foreground: "#2B4C6F"},
	{background: "#E3F0D9", foreground: "#3F6131"},
	{background: "#F6E7B4", foreground: "#7A6216"},
	{background: "#EAD9F0", foreground: "#5B3470"},
	{background: "#F2D5D5", foreground: "#7D2E2E"},
}

// placeholderIndex extracts n from "placeholder_<n>".
func placeholderIndex(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, placeholderPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// placeholderSVG renders the same bytes for the same n.
func placeholderSVG(n int) []byte {
	s := palette[n%len(palette)]
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="600" height="600" viewBox="0 0 600 600">`+
		`<rect width="600" height="600" fill="%s"/>`+
		`<circle cx="300" cy="250" r="90" fill="none" stroke="%s" stroke-width="12"/>`+
		`<text x="300" y="450" font-family="sans-serif" font-size="40" text-anchor="middle" fill="%s">Product %d</text>`+
		`</svg>`, s.background, s.foreground, s.foreground, n))
}

var unavailableSVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="600" height="600" viewBox="0 0 600 600">` +
	`<rect width="600" height="600" fill="#EEEEEE"/>` +
	`<path d="M200 380 L270 290 L320 350 L360 310 L420 380 Z" fill="#BDBDBD"/>` +
	`<circle cx="380" cy="230" r="28" fill="#BDBDBD"/>` +
	`<text x="300" y="460" font-family="sans-serif" font-size="32" text-anchor="middle" fill="#9E9E9E">Image unavailable</text>` +
	`</svg>`)
