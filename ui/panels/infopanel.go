// Package panels provides the viewer's side panel.
package panels

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"falcomplot/internal/app"
)

// InfoPanel shows the mode summary, tree metadata and whatever is under the
// pointer.
type InfoPanel struct {
	status *widget.Label
	tree   *widget.Label
	hover  *widget.Label

	container fyne.CanvasObject
}

// NewInfoPanel creates an empty panel.
func NewInfoPanel() *InfoPanel {
	p := &InfoPanel{
		status: widget.NewLabel(""),
		tree:   widget.NewLabel("No tree loaded"),
		hover:  widget.NewLabel(HoverText(app.HoverResult{}, app.Snapshot{})),
	}
	p.status.Wrapping = fyne.TextWrapWord
	p.hover.Wrapping = fyne.TextWrapWord

	p.container = container.NewVScroll(container.NewVBox(
		widget.NewCard("Status", "", p.status),
		widget.NewCard("Tree", "", p.tree),
		widget.NewCard("Details", "", p.hover),
	))
	return p
}

// Container returns the panel's root object.
func (p *InfoPanel) Container() fyne.CanvasObject {
	return p.container
}

// Update refreshes the status and tree metadata.
func (p *InfoPanel) Update(snap app.Snapshot) {
	p.status.SetText(StatusText(snap))
	p.tree.SetText(TreeMetadataText(snap))
}

// ShowHover describes a hover result.
func (p *InfoPanel) ShowHover(res app.HoverResult, snap app.Snapshot) {
	p.hover.SetText(HoverText(res, snap))
}
