package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"github.com/ulikunitz/xz"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
)

const xzMagic = "\xfd7zXZ\x00"

var kinds = map[string]func() PredictionModel{}

/*
Register adds model kind constructor used by Restore
*/
func Register(kind string, f func() PredictionModel) {
	kinds[kind] = f
}

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

/*
Memorize writes fitted model to the output as json, xz compressed if required
*/
func Memorize(output iokit.Output, m PredictionModel, compress bool) (err error) {
	b, err := json.Marshal(m)
	if err != nil {
		return zorros.Trace(err)
	}
	wh, err := output.Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	var w io.Writer = wh
	var xw *xz.Writer
	if compress {
		if xw, err = xz.NewWriter(wh); err != nil {
			return zorros.Trace(err)
		}
		w = xw
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err = enc.Encode(envelope{m.Kind(), b}); err != nil {
		return zorros.Trace(err)
	}
	if xw != nil {
		if err = xw.Close(); err != nil {
			return zorros.Trace(err)
		}
	}
	if err = wh.Commit(); err != nil {
		return zorros.Trace(err)
	}
	return
}

/*
Restore reads memorized model of any registered kind
*/
func Restore(input iokit.Input) (m PredictionModel, err error) {
	rd, err := input.Open()
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer rd.Close()
	br := bufio.NewReader(rd)
	var r io.Reader = br
	if h, _ := br.Peek(len(xzMagic)); bytes.Equal(h, []byte(xzMagic)) {
		if r, err = xz.NewReader(br); err != nil {
			return nil, zorros.Trace(err)
		}
	}
	e := envelope{}
	if err = json.NewDecoder(r).Decode(&e); err != nil {
		return nil, zorros.Trace(err)
	}
	f, ok := kinds[e.Kind]
	if !ok {
		return nil, zorros.Errorf("unknown model kind `%v`", e.Kind)
	}
	m = f()
	if err = json.Unmarshal(e.Model, m); err != nil {
		return nil, zorros.Trace(err)
	}
	return
}
