package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Open     key.Binding
	Submit   key.Binding
	Cancel   key.Binding
	Patient  key.Binding
	Export   key.Binding
	UpDown   key.Binding
	Parent   key.Binding
	Close    key.Binding
	Filter   key.Binding
	Cycle    key.Binding
	Period   key.Binding
	Refresh  key.Binding
	Reset    key.Binding
	Delete   key.Binding
	Confirm  key.Binding
	Decline  key.Binding
	NextEdit key.Binding
	Done     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextTab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "choose image")),
		Submit:   key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "generate report")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Patient:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "patient")),
		Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		UpDown:   key.NewBinding(key.WithKeys("up", "down", "j", "k"), key.WithHelp("j/k", "navigate")),
		Parent:   key.NewBinding(key.WithKeys("backspace", "h"), key.WithHelp("backspace", "parent dir")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "patient filter")),
		Cycle:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "diagnosis filter")),
		Period:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "period")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear history")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Confirm:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Decline:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "keep")),
		NextEdit: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Done:     key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "done")),
	}
}

// helpFor returns the bindings shown in the footer for the current context.
func (k keyMap) helpFor(ctx helpContext) []key.Binding {
	switch ctx {
	case helpPicker:
		return []key.Binding{k.UpDown, withHelp(k.Submit, "enter", "select"), k.Parent, k.Close}
	case helpEditing:
		return []key.Binding{k.NextEdit, k.Done}
	case helpFiltering:
		return []key.Binding{withHelp(k.Done, "enter", "apply"), k.Close}
	case helpConfirm:
		return []key.Binding{k.Confirm, k.Decline}
	case helpHistory:
		return []key.Binding{k.NextTab, k.UpDown, k.Filter, k.Cycle, k.Period, k.Export, k.Delete, k.Refresh, k.Reset, k.Quit}
	case helpModel:
		return []key.Binding{k.NextTab, k.PrevTab, k.Quit}
	default:
		return []key.Binding{k.NextTab, k.Open, k.Submit, k.Patient, k.Export, k.Cancel, k.Quit}
	}
}

func withHelp(b key.Binding, keys, desc string) key.Binding {
	b.SetHelp(keys, desc)
	return b
}

type helpContext int

const (
	helpDiagnose helpContext = iota
	helpPicker
	helpEditing
	helpFiltering
	helpConfirm
	helpHistory
	helpModel
)
