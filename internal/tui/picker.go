package tui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type fileItem struct {
	name string
	dir  bool
}

func (f fileItem) Title() string       { return f.name }
func (f fileItem) Description() string { return "" }
func (f fileItem) FilterValue() string { return f.name }

type fileItemDelegate struct{}

func (d fileItemDelegate) Height() int                             { return 1 }
func (d fileItemDelegate) Spacing() int                            { return 0 }
func (d fileItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d fileItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(fileItem)
	if !ok {
		return
	}
	prefix := "  "
	if index == m.Index() {
		prefix = cursorStyle.Render("> ")
	}
	name := entry.name
	if entry.dir {
		name = dirStyle.Render(name + "/")
	}
	line := prefix + name
	if m.Width() > 0 {
		line = ansi.Truncate(line, m.Width(), "…")
	}
	fmt.Fprint(w, line)
}

type filesLoadedMsg struct {
	dir   string
	items []list.Item
	err   error
}

// loadFilesCmd lists sub-directories and files in dir whose extension is in exts.
func loadFilesCmd(dir string, exts []string) tea.Cmd {
	return func() tea.Msg {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return filesLoadedMsg{dir: dir, err: fmt.Errorf("resolve dir: %w", err)}
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return filesLoadedMsg{dir: abs, err: fmt.Errorf("read dir: %w", err)}
		}
		return filesLoadedMsg{dir: abs, items: fileItems(entries, exts)}
	}
}

func fileItems(entries []os.DirEntry, exts []string) []list.Item {
	var dirs, files []list.Item
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, fileItem{name: name, dir: true})
			continue
		}
		if hasImageExt(name, exts) {
			files = append(files, fileItem{name: name})
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].(fileItem).name < dirs[j].(fileItem).name })
	sort.SliceStable(files, func(i, j int) bool { return files[i].(fileItem).name < files[j].(fileItem).name })
	return append(dirs, files...)
}

func hasImageExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// filePicker is the modal used to choose an image.
type filePicker struct {
	list list.Model
	dir  string
	exts []string
	open bool
	err  error
}

func newFilePicker(dir string, exts []string) *filePicker {
	l := list.New([]list.Item{}, fileItemDelegate{}, 60, 20)
	l.Title = "Choose image"
	l.Styles.Title = titleStyle
	l.Styles.NoItems = mutedStyle.PaddingLeft(2)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return &filePicker{list: l, dir: dir, exts: exts}
}

func (p *filePicker) setSize(width, height int) {
	w := width - 8
	if w < 20 {
		w = 20
	}
	h := height - 10
	if h < 5 {
		h = 5
	}
	p.list.SetSize(w, h)
}

// Open shows the picker and (re)loads its directory.
func (p *filePicker) Open() tea.Cmd {
	p.open = true
	return loadFilesCmd(p.dir, p.exts)
}

func (p *filePicker) Close() { p.open = false }

func (p *filePicker) loaded(m filesLoadedMsg) tea.Cmd {
	p.err = m.err
	if m.err != nil {
		return nil
	}
	p.dir = m.dir
	p.list.Title = "Choose image  " + mutedStyle.Render(m.dir)
	cmd := p.list.SetItems(m.items)
	p.list.Select(0)
	return cmd
}

// Enter descends into a directory or returns the chosen file path.
func (p *filePicker) Enter() (string, tea.Cmd) {
	item, ok := p.list.SelectedItem().(fileItem)
	if !ok {
		return "", nil
	}
	path := filepath.Join(p.dir, item.name)
	if item.dir {
		p.dir = path
		return "", loadFilesCmd(path, p.exts)
	}
	return path, nil
}

func (p *filePicker) Parent() tea.Cmd {
	parent := filepath.Dir(p.dir)
	if parent == p.dir {
		return nil
	}
	p.dir = parent
	return loadFilesCmd(parent, p.exts)
}

func (p *filePicker) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return cmd
}

func (p *filePicker) View() string {
	body := p.list.View()
	if p.err != nil {
		body += "\n" + errorStyle.Render(p.err.Error())
	}
	return modalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body))
}
