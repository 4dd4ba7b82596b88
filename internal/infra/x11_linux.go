//go:build linux

package infra

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// maxClientList bounds the _NET_CLIENT_LIST read, in 32-bit units.
const maxClientList = 4096

// x11Client talks EWMH to the window manager over a single X connection.
type x11Client struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

func newX11Client() (*x11Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "connect to X display")
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	client := &x11Client{
		conn:  conn,
		root:  root,
		atoms: make(map[string]xproto.Atom),
	}

	atomNames := []string{
		"_NET_CLIENT_LIST",
		"_NET_ACTIVE_WINDOW",
		"_NET_WM_NAME",
		"_NET_WM_PID",
		"WM_NAME",
		"WM_CLASS",
		"UTF8_STRING",
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "intern atom %s", name)
		}
		client.atoms[name] = reply.Atom
	}

	return client, nil
}

func (c *x11Client) Close() error {
	c.conn.Close()
	return nil
}

func (c *x11Client) getProperty(window xproto.Window, atom xproto.Atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

// ListWindows reads _NET_CLIENT_LIST in stacking-manager order.
func (c *x11Client) ListWindows(ctx context.Context) ([]domain.WindowHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := c.getProperty(c.root, c.atoms["_NET_CLIENT_LIST"], xproto.AtomWindow, maxClientList)
	if err != nil {
		return nil, errors.Wrap(err, "read _NET_CLIENT_LIST")
	}

	ids := decodeWindowList(data)
	windows := make([]domain.WindowHandle, 0, len(ids))
	for _, id := range ids {
		win := xproto.Window(id)
		instance, class := c.getWindowClass(win)
		app := class
		if app == "" {
			app = instance
		}
		windows = append(windows, domain.WindowHandle{
			ID:    formatWindowID(id),
			Title: c.getWindowName(win),
			App:   app,
			PID:   int(c.getWindowPID(win)),
		})
	}
	return windows, nil
}

func (c *x11Client) getWindowName(window xproto.Window) string {
	data, err := c.getProperty(window, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = c.getProperty(window, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

func (c *x11Client) getWindowClass(window xproto.Window) (instance, class string) {
	data, err := c.getProperty(window, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil {
		return "", ""
	}
	return parseWMClass(data)
}

func (c *x11Client) getWindowPID(window xproto.Window) uint32 {
	data, err := c.getProperty(window, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

func (c *x11Client) activeWindow() xproto.Window {
	data, err := c.getProperty(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

// Position implements domain.PointerReader via QueryPointer on the root window.
func (c *x11Client) Position(ctx context.Context) (domain.Point, error) {
	if err := ctx.Err(); err != nil {
		return domain.Point{}, err
	}
	reply, err := xproto.QueryPointer(c.conn, c.root).Reply()
	if err != nil {
		return domain.Point{}, errors.Wrap(err, "query pointer")
	}
	return domain.Point{X: int(reply.RootX), Y: int(reply.RootY)}, nil
}

// requestActivation sends the EWMH _NET_ACTIVE_WINDOW client message.
// Source indication 2 marks the request as coming from a pager, which
// window managers honor without focus-stealing prevention.
func (c *x11Client) requestActivation(window xproto.Window) error {
	current := c.activeWindow()
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: window,
		Type:   c.atoms["_NET_ACTIVE_WINDOW"],
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{2, xproto.TimeCurrentTime, uint32(current), 0, 0}),
	}

	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	if err := xproto.SendEventChecked(c.conn, false, c.root, mask, string(ev.Bytes())).Check(); err != nil {
		return errors.Wrapf(err, "send _NET_ACTIVE_WINDOW to %s", formatWindowID(uint32(window)))
	}
	return nil
}

// x11Backend activates windows through the window manager.
type x11Backend struct {
	client *x11Client
}

func (b *x11Backend) Name() string    { return "x11" }
func (b *x11Backend) Available() bool { return b.client != nil }

func (b *x11Backend) Activate(ctx context.Context, window domain.WindowHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := parseWindowID(window.ID)
	if err != nil {
		return err
	}
	return b.client.requestActivation(xproto.Window(id))
}

// x11Gesture returns focus to the window that was active before a switch.
type x11Gesture struct {
	client *x11Client

	mu       sync.Mutex
	previous xproto.Window
}

func (g *x11Gesture) Remember(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.previous = g.client.activeWindow()
	g.mu.Unlock()
	return nil
}

func (g *x11Gesture) SwitchToPrevious(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	prev := g.previous
	g.mu.Unlock()

	if prev == 0 {
		return fmt.Errorf("no previously active window")
	}
	return g.client.requestActivation(prev)
}

// decodeWindowList converts a CARDINAL[]/WINDOW[] property into ids.
func decodeWindowList(data []byte) []uint32 {
	ids := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		ids = append(ids, binary.LittleEndian.Uint32(data[i:i+4]))
	}
	return ids
}

// parseWMClass splits WM_CLASS ("instance\x00Class\x00").
func parseWMClass(data []byte) (instance, class string) {
	if len(data) == 0 {
		return "", ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}

func formatWindowID(id uint32) string {
	return fmt.Sprintf("0x%08x", id)
}

func parseWindowID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid window id %q", s)
	}
	return uint32(v), nil
}

var (
	_ domain.WindowLister      = (*x11Client)(nil)
	_ domain.PointerReader     = (*x11Client)(nil)
	_ domain.ActivationBackend = (*x11Backend)(nil)
	_ domain.FocusGesture      = (*x11Gesture)(nil)
)
