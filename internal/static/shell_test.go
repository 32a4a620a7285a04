package static_test

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/termsim-devserver/internal/bootstrap"
	"github.com/angeloszaimis/termsim-devserver/internal/static"
	"github.com/angeloszaimis/termsim-devserver/internal/ui"
	"github.com/angeloszaimis/termsim-devserver/pkg/logger"
)

var _ = Describe("Shell", func() {
	var boot *bootstrap.Bootstrap

	BeforeEach(func() {
		boot = bootstrap.New("/", "#app", ui.App{Title: "Terminal", BaseURL: "/"})
	})

	get := func(h http.Handler, target, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	Context("with the embedded shell", func() {
		var shell *static.Shell

		BeforeEach(func() {
			var err error
			shell, err = static.New("", boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should serve the page with the terminal mounted under #app", func() {
			w := get(shell, "/", "text/html")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(w.Body.String()).To(ContainSubstring(`id="app"`))
			Expect(w.Body.String()).To(ContainSubstring(ui.RootAttr + `="App"`))
			Expect(w.Body.String()).To(ContainSubstring("terminal-input"))
		})

		It("should mount again on every load", func() {
			first := get(shell, "/", "").Body.String()
			second := get(shell, "/index.html", "").Body.String()

			Expect(second).To(Equal(first))
			Expect(strings.Count(second, ui.RootAttr)).To(Equal(1))
		})

		It("should fall back to the page for client-side routes", func() {
			w := get(shell, "/sessions/42", "text/html,application/xhtml+xml")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(ui.RootAttr))
		})

		It("should not fall back for missing assets", func() {
			Expect(get(shell, "/assets/main.js", "*/*").Code).To(Equal(http.StatusNotFound))
		})

		It("should not fall back for non-HTML requests", func() {
			Expect(get(shell, "/sessions/42", "application/json").Code).To(Equal(http.StatusNotFound))
		})

		It("should refuse writes", func() {
			w := httptest.NewRecorder()
			shell.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		})

		It("should return from Watch immediately", func() {
			Expect(shell.Watch(context.Background())).To(Succeed())
		})
	})

	Context("with a static directory", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "index.html"),
				[]byte(`<html><body><div id="app">loading</div></body></html>`), 0644)).To(Succeed())
			Expect(os.MkdirAll(filepath.Join(dir, "assets"), 0755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "assets", "main.js"),
				[]byte(`console.log("hi")`), 0644)).To(Succeed())
		})

		It("should serve files as they are", func() {
			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())

			w := get(shell, "/assets/main.js", "*/*")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(`console.log("hi")`))
		})

		It("should replace the placeholder content", func() {
			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())

			body := get(shell, "/", "").Body.String()
			Expect(body).NotTo(ContainSubstring("loading"))
			Expect(body).To(ContainSubstring(ui.RootAttr))
		})

		It("should serve the shell unmounted when #app is missing", func() {
			raw := `<html><body><main id="root"></main></body></html>`
			Expect(os.WriteFile(filepath.Join(dir, "index.html"), []byte(raw), 0644)).To(Succeed())
			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())

			w := get(shell, "/", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(raw))
		})

		It("should pick up a changed shell", func() {
			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())
			Expect(get(shell, "/", "").Body.String()).NotTo(ContainSubstring("v2"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go shell.Watch(ctx)

			updated := []byte(`<html><head><title>v2</title></head><body><div id="app"></div></body></html>`)
			Eventually(func() string {
				Expect(os.WriteFile(filepath.Join(dir, "index.html"), updated, 0644)).To(Succeed())
				return get(shell, "/", "").Body.String()
			}).Should(ContainSubstring("v2"))
		})

		It("should reject a missing directory", func() {
			_, err := static.New(filepath.Join(dir, "nope"), boot, logger.Discard())
			Expect(err).To(HaveOccurred())
		})

		It("should reject a file in place of a directory", func() {
			_, err := static.New(filepath.Join(dir, "index.html"), boot, logger.Discard())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Invalidate", func() {
		It("should make the next load reread the shell", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "index.html")
			Expect(os.WriteFile(path, []byte(`<div id="app"></div><p>one</p>`), 0644)).To(Succeed())

			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())
			Expect(get(shell, "/", "").Body.String()).To(ContainSubstring("one"))

			Expect(os.WriteFile(path, []byte(`<div id="app"></div><p>two</p>`), 0644)).To(Succeed())
			Expect(get(shell, "/", "").Body.String()).To(ContainSubstring("one"))

			shell.Invalidate()
			Expect(get(shell, "/", "").Body.String()).To(ContainSubstring("two"))
		})

		It("should not cache a shell that changed while it was being read", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "index.html")
			Expect(os.WriteFile(path, []byte(`<div id="app"></div><p>one</p>`), 0644)).To(Succeed())

			shell, err := static.New(dir, boot, logger.Discard())
			Expect(err).NotTo(HaveOccurred())

			reads := 0
			shell.SetIndexReader(func(fsys fs.FS, name string) ([]byte, error) {
				reads++
				raw, err := fs.ReadFile(fsys, name)
				if reads == 1 {
					Expect(os.WriteFile(path, []byte(`<div id="app"></div><p>two</p>`), 0644)).To(Succeed())
					shell.Invalidate()
				}
				return raw, err
			})

			Expect(get(shell, "/", "").Body.String()).To(ContainSubstring("one"))
			Expect(get(shell, "/", "").Body.String()).To(ContainSubstring("two"))
			Expect(reads).To(Equal(2))
		})
	})
})
