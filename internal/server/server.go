// Package server serves the project tree with live reload and reacts to file changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/helpers"
	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/internal/watcher"

	_ "embed"
)

//go:embed livereload.html
var liveReloadScript []byte

const liveReloadPath = "/__internal/livereload"

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		w.WriteHeader(500)
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Options struct {
	// Root is the served and watched folder.
	Root string
	// Addr is the listen address, ":3000" by default. Port 0 picks a free port.
	Addr string
	// WatchDelay coalesces bursts of changes of a single binding.
	WatchDelay time.Duration
	// Ignore lists folders, relative to Root, that are never watched.
	Ignore  []string
	Metrics *metrics.Recorder
}

// Binding runs React whenever a file of Files changes.
type Binding struct {
	Name  string
	Files *fileset.Set
	React func(ctx context.Context, rel string)
}

// Handle is a running server. It stops when the context given to Start is done.
type Handle struct {
	srv     *http.Server
	ln      net.Listener
	broker  *Broker
	watcher *watcher.Watcher

	wg    sync.WaitGroup
	errMu sync.Mutex
	err   error
}

// Start listens and serves until ctx is done.
func Start(ctx context.Context, opts Options) (*Handle, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Addr == "" {
		opts.Addr = ":3000"
	}

	w, err := watcher.New(opts.Root, opts.WatchDelay, append([]string{".git", "node_modules"}, opts.Ignore...)...)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
	}

	h := &Handle{
		ln:      ln,
		broker:  newBroker(opts.Metrics),
		watcher: w,
	}

	r := mux.NewRouter()
	r.HandleFunc(liveReloadPath, h.livereloadHandler)
	r.Handle("/metrics", opts.Metrics.Handler())
	r.PathPrefix("/").HandlerFunc(fileServer(opts.Root))
	h.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	h.wg.Add(3)
	go func() {
		defer h.wg.Done()
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.setErr(err)
		}
	}()
	go func() {
		defer h.wg.Done()
		w.Run(ctx)
	}()
	go func() {
		defer h.wg.Done()
		<-ctx.Done()
		h.broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			h.setErr(err)
		}
	}()

	// We use println here so the address can be copied or opened directly from the terminal
	fmt.Println("Listening on http://localhost:" + portOf(ln.Addr()))
	return h, nil
}

func portOf(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprint(tcp.Port)
	}
	return addr.String()
}

func (h *Handle) setErr(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// Addr returns the address the server listens on.
func (h *Handle) Addr() string {
	return h.ln.Addr().String()
}

func (h *Handle) Watch(b Binding) {
	h.watcher.Add(watcher.Binding{Name: b.Name, Match: b.Files.Match, React: b.React})
}

// Reload asks every browser to reload the page.
func (h *Handle) Reload() {
	h.broker.Publish(Message{Type: MessageReload})
}

// InjectCSS asks every browser to refresh the stylesheet at path, relative to the root,
// without reloading the page.
func (h *Handle) InjectCSS(path string) {
	h.broker.Publish(Message{Type: MessageCSS, Path: fileset.Clean(path)})
}

// Clients returns the number of connected live-reload clients.
func (h *Handle) Clients() int {
	return h.broker.Len()
}

// Wait blocks until the server has stopped.
func (h *Handle) Wait() error {
	h.wg.Wait()
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

func (h *Handle) livereloadHandler(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		tlogger.Warn("msg", "Reload socket upgrade failed", "err", err)
		return
	}
	defer c.Close()

	id, ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(id)
	tlogger.Debug("msg", "WS Established", "client", id)

	// Reading detects the browser going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-ch:
			if !ok {
				c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			payload, err := helpers.MarshalJSON(msg)
			if err != nil {
				tlogger.Error("msg", "Could not encode reload message", "err", err)
				continue
			}
			c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				tlogger.Warn("msg", "Reload socket error", "client", id, "err", err)
				return
			}
		}
	}
}

func fileServer(dir string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		upath := r.URL.Path
		if !strings.HasPrefix(upath, "/") {
			upath = "/" + upath
			r.URL.Path = upath
		}

		const indexPage = "index.html"

		fullName := filepath.Join(dir, filepath.FromSlash(path.Clean(upath)))

		info, err := os.Stat(fullName)
		if err != nil && !os.IsNotExist(err) {
			internalError(w, err)
			return
		}

		valid := err == nil && !info.IsDir()
		if !valid {
			for _, candidate := range []string{fullName + ".html", filepath.Join(fullName, indexPage)} {
				info, err := os.Stat(candidate)
				if err != nil && !os.IsNotExist(err) {
					internalError(w, err)
					return
				}
				if err == nil && !info.IsDir() {
					fullName = candidate
					valid = true
					break
				}
			}
		}

		if !valid {
			w.WriteHeader(404)
			w.Write([]byte("404 page not found"))
			return
		}

		content, err := os.Open(fullName)
		if err != nil {
			internalError(w, err)
			return
		}
		defer content.Close()

		ctype := mime.TypeByExtension(filepath.Ext(fullName))
		if ctype == "" {
			// read a chunk to decide between utf-8 text and binary
			var buf [512]byte
			n, _ := io.ReadFull(content, buf[:])
			ctype = http.DetectContentType(buf[:n])
			if _, err := content.Seek(0, io.SeekStart); err != nil {
				internalError(w, err)
				return
			}
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "no-cache")
		io.Copy(w, content)
		if strings.HasPrefix(ctype, "text/html") {
			if _, err := w.Write(liveReloadScript); err != nil {
				tlogger.Error("msg", "could not live reload", "err", err)
			}
		}
	}
}

func internalError(w http.ResponseWriter, err error) {
	w.WriteHeader(500)
	w.Write([]byte("Internal error: can't open file: " + err.Error()))
}
