package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// historySize bounds the calls kept on screen.
const historySize = 5

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	typeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
)

type screen int

const (
	screenPick screen = iota
	screenArgs
	screenResult
)

// session is the bubbletea model. One Runtime serves every call, so a failed
// call followed by a good one shows the runtime recovering.
type session struct {
	err      error
	rt       *runtime.Runtime
	ref      *engine.WazeroInstance
	refClose func()
	cfg      runtime.Config
	filename string
	data     []byte
	exports  []exportView
	fields   []textinput.Model
	history  []callRecord
	last     callRecord
	cursor   int
	focus    int
	screen   screen
	verify   bool
}

type exportView struct {
	name   string
	result string
	params []paramView
}

type paramView struct {
	label   string
	witType wit.Type
}

type callRecord struct {
	err      error
	export   string
	args     []runtime.Value
	results  []runtime.Value
	verified bool
}

func (c callRecord) summary() string {
	call := fmt.Sprintf("%s(%s)", c.export, formatArgs(c.args))
	if c.err != nil {
		return failStyle.Render(call + " failed: " + c.err.Error())
	}
	line := call + " = " + formatResults(c.results)
	if c.verified {
		line += " ✓"
	}
	return okStyle.Render(line)
}

type loadedMsg struct {
	err     error
	rt      *runtime.Runtime
	data    []byte
	exports []exportView
}

type calledMsg callRecord

func newSession(filename string, cfg runtime.Config) *session {
	return &session{filename: filename, cfg: cfg}
}

func (s *session) Init() tea.Cmd {
	return s.load
}

func (s *session) load() tea.Msg {
	data, err := readModule(s.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	rt, err := runtime.InstantiateWithConfig(data, s.cfg)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{rt: rt, data: data, exports: describeExports(rt.Exports())}
}

func describeExports(exports []runtime.ExportInfo) []exportView {
	views := make([]exportView, 0, len(exports))
	for _, exp := range exports {
		v := exportView{name: exp.Name}
		for i, p := range exp.Type.Params {
			v.params = append(v.params, paramView{label: fmt.Sprintf("arg%d", i), witType: witType(p)})
		}
		if len(exp.Type.Results) > 0 {
			v.result = witTypeStr(witType(exp.Type.Results[0]))
		}
		views = append(views, v)
	}
	return views
}

func (s *session) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.err = msg.err
		s.rt, s.data, s.exports = msg.rt, msg.data, msg.exports
		return s, nil

	case calledMsg:
		s.record(callRecord(msg))
		s.screen = screenResult
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return s, tea.Quit
		}
		switch s.screen {
		case screenPick:
			return s.updatePick(msg)
		case screenArgs:
			return s.updateArgs(msg)
		case screenResult:
			return s.updateResult(msg)
		}
	}

	if s.screen == screenArgs {
		return s, s.forwardToFields(msg)
	}
	return s, nil
}

func (s *session) record(rec callRecord) {
	s.last = rec
	s.history = append(s.history, rec)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

func (s *session) updatePick(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return s, tea.Quit
	case "up", "k":
		s.cursor = max(s.cursor-1, 0)
	case "down", "j":
		s.cursor = min(s.cursor+1, max(len(s.exports)-1, 0))
	case "v":
		if s.rt != nil {
			s.toggleVerify()
		}
	case "enter":
		if len(s.exports) == 0 {
			return s, nil
		}
		s.buildFields()
		if len(s.fields) == 0 {
			return s, s.call
		}
		s.screen = screenArgs
	}
	return s, nil
}

func (s *session) updateArgs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return s, s.call
	case "esc":
		s.fields = nil
		s.screen = screenPick
		return s, nil
	case "tab", "shift+tab":
		if len(s.fields) > 1 {
			step := 1
			if msg.String() == "shift+tab" {
				step = len(s.fields) - 1
			}
			s.fields[s.focus].Blur()
			s.focus = (s.focus + step) % len(s.fields)
			s.fields[s.focus].Focus()
		}
		return s, nil
	}
	return s, s.forwardToFields(msg)
}

func (s *session) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return s, tea.Quit
	case "enter", "esc":
		s.screen = screenPick
	}
	return s, nil
}

func (s *session) forwardToFields(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, len(s.fields))
	for i := range s.fields {
		s.fields[i], cmds[i] = s.fields[i].Update(msg)
	}
	return tea.Batch(cmds...)
}

func (s *session) buildFields() {
	exp := s.exports[s.cursor]
	s.fields = make([]textinput.Model, len(exp.params))
	for i, p := range exp.params {
		in := textinput.New()
		in.Prompt = p.label + ": "
		in.Placeholder = witTypeStr(p.witType)
		in.Width = 40
		if i == 0 {
			in.Focus()
		}
		s.fields[i] = in
	}
	s.focus = 0
}

// toggleVerify starts or stops cross-checking calls against wazero. A
// reference that cannot be built leaves verification off and lands in the
// history.
func (s *session) toggleVerify() {
	if s.verify {
		s.closeReference()
		s.verify = false
		return
	}

	ctx := context.Background()
	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		s.record(callRecord{export: "verify", err: err})
		return
	}
	ref, err := loadReference(ctx, eng, s.data)
	if err != nil {
		eng.Close(ctx)
		s.record(callRecord{export: "verify", err: err})
		return
	}
	s.ref = ref
	s.refClose = func() {
		ref.Close(ctx)
		eng.Close(ctx)
	}
	s.verify = true
}

func loadReference(ctx context.Context, eng *engine.WazeroEngine, data []byte) (*engine.WazeroInstance, error) {
	mod, err := eng.LoadModule(ctx, data)
	if err != nil {
		return nil, err
	}
	return mod.Instantiate(ctx)
}

func (s *session) closeReference() {
	if s.refClose != nil {
		s.refClose()
		s.refClose = nil
	}
	s.ref = nil
}

func (s *session) call() tea.Msg {
	if s.rt == nil {
		return calledMsg{err: fmt.Errorf("module not loaded")}
	}

	exp := s.exports[s.cursor]
	rec := callRecord{export: exp.name, args: make([]runtime.Value, len(s.fields))}
	for i, field := range s.fields {
		v, err := convertArg(field.Value(), exp.params[i].witType)
		if err != nil {
			rec.err = err
			return calledMsg(rec)
		}
		rec.args[i] = v
	}

	ctx := context.Background()
	if s.ref != nil {
		rec.results, rec.err = engine.Verify(ctx, s.rt, s.ref, exp.name, rec.args...)
		rec.verified = rec.err == nil
	} else {
		rec.results, rec.err = s.rt.CallContext(ctx, exp.name, rec.args...)
	}
	return calledMsg(rec)
}

func witType(t wasm.ValType) wit.Type {
	switch t {
	case wasm.ValI32:
		return wit.S32{}
	case wasm.ValI64:
		return wit.S64{}
	default:
		return nil
	}
}

func convertArg(text string, t wit.Type) (runtime.Value, error) {
	text = strings.TrimSpace(text)
	switch t.(type) {
	case wit.S32:
		return runtime.ParseValue(wasm.ValI32, text)
	case wit.S64:
		return runtime.ParseValue(wasm.ValI64, text)
	default:
		return runtime.Value{}, errors.Unsupported(errors.PhaseParse, "argument type "+witTypeStr(t))
	}
}

func witTypeStr(t wit.Type) string {
	switch t.(type) {
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case nil:
		return "unknown"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func (s *session) View() string {
	if s.err != nil {
		return failStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", s.err))
	}
	if s.rt == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("WASM Interp"))
	b.WriteString(" " + s.filename)
	if s.verify {
		b.WriteString(" " + typeStyle.Render("[verify: wazero]"))
	}
	b.WriteString("\n\n")

	switch s.screen {
	case screenPick:
		s.viewPick(&b)
	case screenArgs:
		s.viewArgs(&b)
	case screenResult:
		s.viewResult(&b)
	}

	if len(s.history) > 0 {
		b.WriteString("\n\n" + mutedStyle.Render("Recent calls:") + "\n")
		for _, rec := range s.history {
			b.WriteString("  " + rec.summary() + "\n")
		}
	}
	return b.String()
}

func (s *session) viewPick(b *strings.Builder) {
	if len(s.exports) == 0 {
		b.WriteString("The module exports no functions.\n\n")
		b.WriteString(mutedStyle.Render("q quit"))
		return
	}
	b.WriteString("Select a function to call:\n\n")
	for i, exp := range s.exports {
		if i == s.cursor {
			b.WriteString(cursorStyle.Render("> " + signature(exp)))
		} else {
			b.WriteString("  " + signature(exp))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ select • enter call • v toggle verify • q quit"))
}

func (s *session) viewArgs(b *strings.Builder) {
	exp := s.exports[s.cursor]
	fmt.Fprintf(b, "Calling %s\n\n", nameStyle.Render(exp.name))
	for i, field := range s.fields {
		b.WriteString(field.View() + " " + typeStyle.Render(witTypeStr(exp.params[i].witType)) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("tab next field • enter call • esc back"))
}

func (s *session) viewResult(b *strings.Builder) {
	fmt.Fprintf(b, "Result of %s:\n\n", nameStyle.Render(s.last.export))
	if s.last.err != nil {
		b.WriteString(failStyle.Render("Error: " + s.last.err.Error()))
	} else {
		b.WriteString(okStyle.Render(formatResults(s.last.results)))
	}
	b.WriteString("\n\n" + mutedStyle.Render("enter continue • q quit"))
}

func signature(exp exportView) string {
	params := make([]string, len(exp.params))
	for i, p := range exp.params {
		params[i] = p.label + ": " + typeStyle.Render(witTypeStr(p.witType))
	}
	sig := nameStyle.Render(exp.name) + "(" + strings.Join(params, ", ") + ")"
	if exp.result != "" {
		sig += " -> " + typeStyle.Render(exp.result)
	}
	return sig
}

func runInteractive(filename string, cfg runtime.Config) error {
	s := newSession(filename, cfg)
	defer s.closeReference()
	_, err := tea.NewProgram(s, tea.WithAltScreen()).Run()
	return err
}
