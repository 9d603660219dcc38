package nav

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Section marks which part of the app the current page belongs to.
type Section string

const (
	SectionAdmin    Section = "admin"
	SectionOperator Section = "operator"
)

var links = []struct {
	Section Section
	Href    string
	Label   string
}{
	{SectionAdmin, "/admin", "Orders"},
	{SectionOperator, "/operator", "Picking"},
}

// TopNav renders the shared navigation bar with the active section marked.
func TopNav(active Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<nav class="topnav"><span class="brand">pickflow</span>`); err != nil {
			return err
		}
		for _, link := range links {
			class := "nav-link"
			if link.Section == active {
				class = "nav-link nav-active"
			}
			if _, err := fmt.Fprintf(w, `<a class="%s" href="%s">%s</a>`, class, link.Href, templ.EscapeString(link.Label)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</nav>`)
		return err
	})
}
