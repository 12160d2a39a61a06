package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/shiftdesk/internal/client/realtime"
	"github.com/dmitrijs2005/shiftdesk/internal/filex"
)

var (
	errNoPrompt    = errors.New("no pending prompt")
	errEmptyCookie = errors.New("empty session cookie")
)

func (a *App) Status(context.Context) string {
	user, err := a.session.UserID()
	if err != nil {
		user = "anonymous"
	}
	s := fmt.Sprintf("(%s %s", user, a.manager.State())
	if n := a.manager.Attempts(); n > 0 {
		s += fmt.Sprintf(" attempt %d", n)
	}
	return s + ")"
}

func (a *App) Connect(ctx context.Context) error {
	return a.manager.Connect(ctx)
}

func (a *App) Disconnect(context.Context) error {
	return a.manager.Disconnect()
}

func (a *App) Reconnect(ctx context.Context) error {
	return a.manager.Reconnect(ctx)
}

func (a *App) Pending(ctx context.Context) error {
	summary, err := a.reconciler.CheckPending(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%d notifications waiting", summary.OfflineNotificationCount))
	return nil
}

// View accepts the last notification prompt.
func (a *App) View(ctx context.Context) error {
	action := a.notifier.take()
	if action == nil {
		return errNoPrompt
	}
	action(ctx)
	return nil
}

func (a *App) Deliver(ctx context.Context) error {
	n, err := a.reconciler.ForceDeliver(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%d notifications delivered", n))
	return nil
}

func (a *App) Health(ctx context.Context) error {
	h, err := realtime.ProbeHealth(ctx, a.api)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("realtime gateway %s, %d connections", h.Status, h.Connections))
	return nil
}

func (a *App) Get(ctx context.Context, path string) error {
	resp, err := a.api.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	printlnFn(string(resp.Body))
	return nil
}

func (a *App) Download(ctx context.Context, path, file string) (err error) {
	f, err := filex.CreateFile(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(file)
		}
	}()

	n, err := a.api.Download(ctx, path, f)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("saved %d bytes to %s", n, file))
	return nil
}

// Cookie reads a session cookie header from the terminal without echo.
// Without a terminal the header is read as a plain line.
func (a *App) Cookie(ctx context.Context) error {
	var (
		header string
		err    error
	)
	if stdinIsTerminal() {
		header, err = GetSecret("Session cookie (name=value; ...)", os.Stdout)
	} else {
		header, err = GetSimpleText(bufio.NewReader(os.Stdin), "Session cookie (name=value; ...)", os.Stdout)
	}
	if err != nil {
		return err
	}
	if header == "" {
		return errEmptyCookie
	}
	if err := a.session.LoadCookieHeader(header); err != nil {
		return err
	}
	a.logger.Info(ctx, "session cookie loaded")
	return nil
}
