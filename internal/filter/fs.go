package filter

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var errNotRegular = errors.New("not a regular file")

// FileReply streams a file from disk. It supports conditional and range
// requests through http.ServeContent.
type FileReply struct {
	path    string
	modTime time.Time
}

// Path returns the file system path being served.
func (f *FileReply) Path() string { return f.path }

func (f *FileReply) WriteReply(w http.ResponseWriter, r *http.Request) {
	fh, err := os.Open(f.path)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	defer fh.Close()
	http.ServeContent(w, r, filepath.Base(f.path), f.modTime, fh)
}

type dir struct {
	root string
}

// Dir serves files below root. The remaining path segments name the file,
// and a directory serves its index.html. Only GET and HEAD are accepted;
// a path that escapes root or names no regular file is NotFound.
func Dir(root string) Filter {
	return &dir{root: root}
}

func (d *dir) Shape() Shape { return ShapeOf[*FileReply]() }

func (d *dir) Extract(rt *Route) (Tuple, *Rejection) {
	if rej := getOrHead(rt); rej != nil {
		return nil, rej
	}
	rest := rt.Remaining()
	for _, seg := range rest {
		if seg == ".." || strings.ContainsAny(seg, `/\`) {
			return nil, NotFound()
		}
	}
	full := filepath.Join(d.root, filepath.FromSlash(path.Join(rest...)))
	reply, err := statFile(full, true)
	if err != nil {
		rej := NotFound()
		rej.Cause = err
		return nil, rej
	}
	rt.advance(len(rest))
	return Tuple{reply}, nil
}

type file struct {
	path string
}

// File serves one file for GET and HEAD requests. It rejects with
// NotFound when the file does not exist at request time.
func File(path string) Filter {
	return &file{path: path}
}

func (f *file) Shape() Shape { return ShapeOf[*FileReply]() }

func (f *file) Extract(rt *Route) (Tuple, *Rejection) {
	if rej := getOrHead(rt); rej != nil {
		return nil, rej
	}
	reply, err := statFile(f.path, false)
	if err != nil {
		rej := NotFound()
		rej.Cause = err
		return nil, rej
	}
	return Tuple{reply}, nil
}

func getOrHead(rt *Route) *Rejection {
	switch rt.Method() {
	case http.MethodGet, http.MethodHead:
		return nil
	}
	return MethodMismatch("GET or HEAD", rt.Method())
}

func statFile(p string, index bool) (*FileReply, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() && index {
		p = filepath.Join(p, "index.html")
		if info, err = os.Stat(p); err != nil {
			return nil, err
		}
	}
	if !info.Mode().IsRegular() {
		return nil, errNotRegular
	}
	return &FileReply{path: p, modTime: info.ModTime()}, nil
}
