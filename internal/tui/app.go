// Package tui is the terminal chat client built on top of the session
// library. It renders the message log and presence indicator, and feeds
// composer activity back into the session.
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/ltakahashi/campuschat/internal/bus"
	"github.com/ltakahashi/campuschat/internal/session"
	"github.com/ltakahashi/campuschat/internal/stream"
	"github.com/rivo/tview"
)

// App is the terminal application shell.
type App struct {
	app      *tview.Application
	messages *tview.TextView
	typing   *tview.TextView
	status   *tview.TextView
	composer *tview.InputField

	sess  *session.Session
	title string
}

// New builds the TUI around an existing session.
func New(sess *session.Session) *App {
	a := &App{
		app:      tview.NewApplication(),
		messages: tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
		typing:   tview.NewTextView().SetDynamicColors(true),
		status:   tview.NewTextView().SetDynamicColors(true),
		composer: tview.NewInputField().SetLabel(" > ").SetFieldWidth(0),
		sess:     sess,
	}
	a.status.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	a.composer.SetChangedFunc(func(string) {
		sess.InputActivity()
	})
	a.composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.composer.GetText()
		if text == "" {
			return
		}
		if err := sess.SendText(text); err != nil {
			a.flash(err)
			// The composer keeps its text; nothing was sent.
			return
		}
		a.composer.SetText("")
		a.renderMessages()
	})

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.messages, 0, 1, false).
		AddItem(a.typing, 1, 0, false).
		AddItem(a.composer, 1, 0, true).
		AddItem(a.status, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}
		return event
	})

	return a
}

// SetTitle labels the conversation in the status bar.
func (a *App) SetTitle(name string) {
	a.title = name
	a.app.QueueUpdateDraw(func() { a.renderStatus(a.sess.Status()) })
}

// Run subscribes to session events and blocks until the UI exits.
func (a *App) Run() error {
	ch, unsub := a.sess.Bus().Subscribe("", 256)
	defer unsub()

	go func() {
		for evt := range ch {
			evt := evt
			a.app.QueueUpdateDraw(func() { a.handle(evt) })
		}
	}()

	a.renderStatus(a.sess.Status())
	a.renderMessages()
	return a.app.Run()
}

// Stop terminates the UI loop.
func (a *App) Stop() {
	a.app.Stop()
}

func (a *App) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindStatusChanged:
		a.renderStatus(evt.Payload.(session.StatusChange).To)
	case bus.KindMessage, bus.KindHistoryLoaded:
		a.renderMessages()
	case bus.KindPresence:
		if evt.Payload.(session.Presence).RemoteIsTyping {
			a.typing.SetText("[::d]is typing…[-:-:-]")
		} else {
			a.typing.SetText("")
		}
	case bus.KindFailed:
		reason, _ := evt.Payload.(string)
		a.flash(errors.New("connection failed: " + reason + " (restart the client to retry)"))
	}
}

func (a *App) renderMessages() {
	a.messages.Clear()
	for _, day := range stream.GroupByDay(a.sess.Messages().Snapshot(), time.Local) {
		fmt.Fprintf(a.messages, "[::b]—— %s ——[-:-:-]\n", day.Date.Format("Mon, 02 Jan 2006"))
		for _, m := range day.Messages {
			ts := time.UnixMilli(m.CreatedAt).Format("15:04")
			name := m.SenderName
			if name == "" {
				name = "me"
			}
			mark := ""
			if m.Pending {
				mark = " [::d](sending…)[-:-:-]"
			}
			fmt.Fprintf(a.messages, "[::d]%s[-:-:-] [::b]%s[-:-:-]: %s%s\n", ts, tview.Escape(name), tview.Escape(m.Body), mark)
		}
	}
	a.messages.ScrollToEnd()
}

func (a *App) renderStatus(st session.Status) {
	var label string
	switch st.Phase {
	case session.Idle:
		label = "idle"
	case session.Connecting:
		label = fmt.Sprintf("connecting… (attempt %d)", st.Attempt+1)
	case session.Connected:
		label = "[green]connected[-]"
	case session.Disconnected:
		label = fmt.Sprintf("[yellow]disconnected[-] (%s), retrying", st.Reason)
	case session.Failed:
		label = fmt.Sprintf("[red]connection failed[-]: %s", st.Reason)
	}
	a.status.SetText(fmt.Sprintf(" %s  %s", a.title, label))
}

func (a *App) flash(err error) {
	a.status.SetText(fmt.Sprintf(" %s  [red]%s[-]", a.title, tview.Escape(err.Error())))
}
