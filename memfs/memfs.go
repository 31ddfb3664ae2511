// Copyright 2014 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memfs is an in-memory Service implementation: it has no limit
// on how much memory it will consume for content, and is intended for
// tests and small/ephemeral locations rather than production storage.
// Dead properties are not handled here at all — that's the property
// store's job (§4.12); memfs only ever answers Resource.LiveProperty
// with ok=false.
package memfs

import (
	"io"
	"path"
	"sort"
	"sync"
	"time"

	w "github.com/opendav/core"
	corepath "github.com/opendav/core/path"
	"github.com/opendav/core/xml"
)

type memfs struct {
	m     sync.Mutex
	files map[string]*memfile
}

// New creates a new in-memory Service rooted at "/".
func New() w.Service {
	fs := &memfs{files: make(map[string]*memfile)}
	fs.files["/"] = newMemFile(fs, "/", true)
	return fs
}

func (fs *memfs) Reusable() bool { return true }

func (fs *memfs) Dumpz() []string {
	fs.m.Lock()
	defer fs.m.Unlock()
	n := make([]string, 0, len(fs.files))
	for k := range fs.files {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}

func (fs *memfs) Resolve(p string) (w.Ref, error) {
	p = path.Clean(p)
	if !path.IsAbs(p) {
		return nil, w.ErrorBadPath
	}
	return &memp{fs: fs, path: p}, nil
}

type memp struct {
	fs   *memfs
	path string
}

func (p *memp) String() string { return p.path }

func (p *memp) Parent() w.Ref {
	if p.path == "/" {
		return nil
	}
	return p.parent()
}

func (p *memp) parent() *memp {
	return &memp{fs: p.fs, path: path.Dir(p.path)}
}

func (p *memp) internalLookup() (*memfile, error) {
	f, ok := p.fs.files[p.path]
	if !ok {
		return nil, w.ErrorNotFound
	}
	return f, nil
}

func (p *memp) Lookup() (w.Resource, error) {
	p.fs.m.Lock()
	defer p.fs.m.Unlock()
	return p.internalLookup()
}

func (p *memp) LookupSubtree(depth int) ([]w.Resource, error) {
	if _, err := p.Lookup(); err != nil {
		return nil, err
	}

	p.fs.m.Lock()
	defer p.fs.m.Unlock()

	var resources []w.Resource
	for fn, f := range p.fs.files {
		if _, ok := corepath.Included(fn, p.path, depth); ok {
			resources = append(resources, f)
		}
	}
	return resources, nil
}

func (p *memp) Mkcol() (w.Resource, error) {
	if _, err := p.Lookup(); err == nil {
		return nil, w.ErrorConflict
	}
	p.fs.m.Lock()
	defer p.fs.m.Unlock()
	if _, err := p.parent().internalLookup(); err != nil {
		return nil, w.ErrorMissingParent
	}

	f := newMemFile(p.fs, p.path, true)
	p.fs.files[p.path] = f
	return f, nil
}

func (p *memp) Create() (w.Resource, w.WriteHandle, error) {
	if _, err := p.Lookup(); err == nil {
		return nil, nil, w.ErrorConflict
	}
	p.fs.m.Lock()
	defer p.fs.m.Unlock()
	if _, err := p.parent().internalLookup(); err != nil {
		return nil, nil, w.ErrorMissingParent
	}

	f := newMemFile(p.fs, p.path, false)
	p.fs.files[p.path] = f
	return f, &memfileh{f: f}, nil
}

func (p *memp) Remove() error {
	p.fs.m.Lock()
	defer p.fs.m.Unlock()
	f, err := p.internalLookup()
	if err != nil {
		return w.ErrorNotFound
	} else if f.IsCollection() {
		return w.ErrorIsDir
	}
	delete(p.fs.files, f.path)
	return nil
}

func (p *memp) removeSubtree(subtree string) {
	for fn := range p.fs.files {
		if corepath.InTree(fn, subtree) {
			delete(p.fs.files, fn)
		}
	}
}

func (p *memp) RemoveRecursive() (errs map[string]error) {
	p.fs.m.Lock()
	defer p.fs.m.Unlock()
	errs = make(map[string]error)
	f, err := p.internalLookup()
	if err != nil {
		errs[p.path] = w.ErrorNotFound
		return
	} else if !f.IsCollection() {
		errs[f.path] = w.ErrorIsNotDir
		return
	}
	p.removeSubtree(f.path)
	return
}

func (p *memp) CopyTo(dst w.Ref, opt w.CopyOptions) (bool, error) {
	p.fs.m.Lock()
	defer p.fs.m.Unlock()

	dstp, ok := dst.(*memp)
	if !ok {
		return false, w.ErrorBadHost
	}
	if p.path == dstp.path {
		return false, w.ErrorSameFile
	}

	srcf, err := p.internalLookup()
	if err != nil {
		return false, w.ErrorNotFound
	}
	if srcf.IsCollection() && opt.Move && opt.Depth >= 0 {
		return false, w.ErrorIsDir
	}
	if _, err := dstp.parent().internalLookup(); err != nil {
		return false, w.ErrorMissingParent
	}

	newf := true
	if _, err := dstp.internalLookup(); err == nil {
		if !opt.Overwrite {
			return false, w.ErrorDestExists
		}
		newf = false
		p.removeSubtree(dstp.path)
	}

	for orig, v := range p.fs.files {
		rel, ok := corepath.Included(orig, p.path, opt.Depth)
		if !ok {
			continue
		}
		nn := path.Join(dstp.path, rel)
		if opt.Move {
			v.path = nn
			p.fs.files[nn] = v
			delete(p.fs.files, orig)
		} else {
			p.fs.files[nn] = v.clone(nn)
		}
	}
	return newf, nil
}

type memfile struct {
	fs   *memfs
	dir  bool
	path string
	info w.ResourceInfo

	m    sync.Mutex
	data []byte
}

func newMemFile(fs *memfs, p string, dir bool) *memfile {
	var d []byte
	if !dir {
		d = make([]byte, 0)
	}
	return &memfile{
		fs:   fs,
		dir:  dir,
		path: p,
		info: w.ResourceInfo{Created: time.Now()},
		data: d,
	}
}

func (f *memfile) clone(np string) *memfile {
	f.m.Lock()
	defer f.m.Unlock()

	mf := newMemFile(f.fs, np, f.dir)
	if !f.dir {
		mf.data = make([]byte, len(f.data))
		copy(mf.data, f.data)
	}
	return mf
}

func (f *memfile) Path() string       { return f.path }
func (f *memfile) IsCollection() bool { return f.dir }

func (f *memfile) Stat() (w.ResourceInfo, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.info.Size = int64(len(f.data))
	return f.info, nil
}

func (f *memfile) Open() (w.ReadHandle, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.dir {
		return nil, w.ErrorIsDir
	}
	return &memfileh{f: f}, nil
}

func (f *memfile) Truncate() (w.WriteHandle, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.dir {
		return nil, w.ErrorIsDir
	}
	f.data = make([]byte, 0)
	f.info.LastModified = time.Now()
	return &memfileh{f: f}, nil
}

func (f *memfile) LiveProperty(name xml.QName) (xml.Property, bool) {
	return xml.Property{}, false
}

func (f *memfile) LivePropertyNames() []xml.QName { return nil }

type memfileh struct {
	f   *memfile
	pos int64
}

func (h *memfileh) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	h.f.m.Lock()
	defer h.f.m.Unlock()

	start := int(h.pos)
	end := start + len(b)
	if end > len(h.f.data) {
		old := h.f.data
		h.f.data = make([]byte, end)
		copy(h.f.data, old)
	}
	copy(h.f.data[start:end], b)
	h.pos = int64(end)
	h.f.info.LastModified = time.Now()
	return len(b), nil
}

func (h *memfileh) Close() error { return nil }

func (h *memfileh) Read(p []byte) (int, error) {
	h.f.m.Lock()
	defer h.f.m.Unlock()

	start := int(h.pos)
	if start >= len(h.f.data) {
		return 0, io.EOF
	}
	end := start + len(p)
	if end > len(h.f.data) {
		end = len(h.f.data)
	}
	n := copy(p, h.f.data[h.pos:end])
	h.pos = int64(end)
	return n, nil
}

func (h *memfileh) Seek(offset int64, whence int) (int64, error) {
	h.f.m.Lock()
	defer h.f.m.Unlock()
	np := h.pos
	switch whence {
	case io.SeekStart:
		np = offset
	case io.SeekCurrent:
		np += offset
	case io.SeekEnd:
		np = int64(len(h.f.data)) + offset
	}
	if np < 0 {
		return h.pos, w.ErrorUnderrun
	}
	h.pos = np
	return h.pos, nil
}
