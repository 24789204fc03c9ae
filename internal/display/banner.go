package display

import (
	"fmt"
	"io"

	"github.com/backmassage/imgshift/internal/term"
)

const banner = ` _                         _      _   __  _
(_) _ __ ___    __ _  ___ | |__  (_) / _|| |_
| || '_ ` + "`" + ` _ \  / _` + "`" + ` |/ __|| '_ \ | || |_ | __|
| || | | | | || (_| |\__ \| | | || ||  _|| |_
|_||_| |_| |_| \__, ||___/|_| |_||_||_|   \__|
               |___/
`

// PrintBanner writes the ASCII art banner to w, in magenta when colors are enabled.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, term.Magenta.Sprint(banner))
}
