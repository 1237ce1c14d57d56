package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/atinyakov/InventarisHub/internal/client/controller"
	"github.com/atinyakov/InventarisHub/internal/models"
)

// Renderer writes screens as plain text tables.
type Renderer struct {
	out    io.Writer
	assets string
}

// NewRenderer returns a Renderer writing to out. Relative image paths are
// shown resolved against assetOrigin.
func NewRenderer(out io.Writer, assetOrigin string) *Renderer {
	return &Renderer{out: out, assets: assetOrigin}
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
}

// Login renders the login screen header.
func (r *Renderer) Login() {
	r.printf("\n== Inventaris Login ==\n")
	r.printf("Type 'login' to sign in, 'exit' to quit.\n")
}

// Home renders the management menu.
func (r *Renderer) Home() {
	r.printf("\n== Inventaris Dashboard ==\n")
	r.printf("  users     User Management\n")
	r.printf("  products  Product Management\n")
	r.printf("  logout    Sign out\n")
}

// screen renders the parts shared by every list screen. It reports whether
// records should be rendered.
func screen[T any](r *Renderer, title string, v controller.View[T]) bool {
	r.printf("\n== %s ==\n", title)
	switch v.State {
	case controller.StateLoading:
		r.printf("Loading...\n")
		return false
	case controller.StateError:
		r.printf("Error: %v\n", v.Err)
		return false
	case controller.StateUnmounted:
		return false
	}
	if v.Query != "" {
		r.printf("Search: %q (%d of %d)\n", v.Query, len(v.Filtered), len(v.All))
	}
	if v.IsLoading {
		r.printf("Refreshing...\n")
	}
	return true
}

// Products renders the product management screen.
func (r *Renderer) Products(v controller.View[models.Product]) {
	if !screen(r, "Product Management", v) {
		return
	}
	if len(v.Filtered) == 0 {
		r.printf("No products found.\n")
		return
	}
	tw := r.table()
	_, _ = fmt.Fprintln(tw, "ID\tProduct Name\tCategory\tQuantity\tUnit Price\tTotal Price\tDate\tImage")
	for _, p := range v.Filtered {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name, p.Category, p.Quantity,
			Rupiah(p.Price), Rupiah(p.TotalPrice), Date(p.Date), orDash(ImageURL(r.assets, p.Image)))
	}
	_ = tw.Flush()
}

// Users renders the user management screen.
func (r *Renderer) Users(v controller.View[models.User]) {
	if !screen(r, "User Management", v) {
		return
	}
	if len(v.Filtered) == 0 {
		r.printf("No users found.\n")
		return
	}
	tw := r.table()
	_, _ = fmt.Fprintln(tw, "ID\tUsername\tEmail\tRole")
	for _, u := range v.Filtered {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, orDash(u.Email), u.Role)
	}
	_ = tw.Flush()
}

// Draft renders the fields of an edit modal.
func Draft[T any](r *Renderer, a controller.Adapter[T], d controller.Draft[T]) {
	tw := r.table()
	for _, f := range a.Fields() {
		value := a.Value(d.Record, f.Name)
		switch f.Name {
		case controller.FieldPrice, controller.FieldTotalPrice:
			value = rupiahString(value)
		case controller.FieldImage:
			value = ImageURL(r.assets, value)
			if d.Image != nil {
				value = "new upload: " + d.Image.Filename
			}
		}
		_, _ = fmt.Fprintf(tw, "  %s:\t%s\n", f.Label, orDash(value))
	}
	_ = tw.Flush()
}

// ModalError renders the inline error of an open modal.
func (r *Renderer) ModalError(err error) {
	if err != nil {
		r.printf("  ! %v\n", err)
	}
}

func rupiahString(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return Rupiah(d)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
