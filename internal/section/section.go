// Package section tracks which page section is currently in view.
package section

// ID identifies one of the fixed, vertically stacked page sections.
type ID string

const (
	Home       ID = "home"
	About      ID = "about"
	Experience ID = "experience"
	Skills     ID = "skills"
	Services   ID = "services"
	Portfolio  ID = "portfolio"
	Contact    ID = "contact"
)

// ActivationMargin compensates for the fixed header covering the top of the viewport.
const ActivationMargin = 100.0

var order = [...]ID{Home, About, Experience, Skills, Services, Portfolio, Contact}

var labels = map[ID]string{
	Home:       "Home",
	About:      "About",
	Experience: "Experience",
	Skills:     "Skills",
	Services:   "Services",
	Portfolio:  "Portfolio",
	Contact:    "Contact",
}

// All returns the section IDs in page order.
func All() []ID {
	ids := make([]ID, len(order))
	copy(ids, order[:])
	return ids
}

// Parse converts s into a section ID.
func Parse(s string) (ID, bool) {
	id := ID(s)
	return id, id.Valid()
}

// Valid reports whether id is one of the declared sections.
func (id ID) Valid() bool {
	_, ok := labels[id]
	return ok
}

// Label returns the navigation label for id.
func (id ID) Label() string {
	return labels[id]
}

// String returns the anchor name of the section.
func (id ID) String() string {
	return string(id)
}

// Geometry is the rendered vertical position of a section.
type Geometry struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Layout resolves a section to its rendered geometry.
// ok is false when the section is not present in the rendered page.
type Layout interface {
	Lookup(id ID) (g Geometry, ok bool)
}

// Offsets is a Layout backed by a map.
type Offsets map[ID]Geometry

// Lookup implements Layout.
func (o Offsets) Lookup(id ID) (Geometry, bool) {
	g, ok := o[id]
	return g, ok
}

// Contains reports whether the activation window of g includes scrollY.
func (g Geometry) Contains(scrollY float64) bool {
	return scrollY >= g.Top-ActivationMargin && scrollY < g.Top+g.Height-ActivationMargin
}

// Locate returns the first section, in page order, whose activation window
// contains scrollY. Sections missing from layout are skipped.
func Locate(scrollY float64, layout Layout) (ID, bool) {
	if layout == nil {
		return "", false
	}
	for _, id := range order {
		g, ok := layout.Lookup(id)
		if !ok {
			continue
		}
		if g.Contains(scrollY) {
			return id, true
		}
	}
	return "", false
}
