package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// printer writes command results, raw or as JSON or YAML.
type printer struct {
	w    io.Writer
	yaml bool
}

func (p *printer) writer() io.Writer {
	if p.w == nil {
		return os.Stdout
	}
	return p.w
}

// raw prints a response body as is.
func (p *printer) raw(b []byte) error {
	w := p.writer()
	if _, err := w.Write(b); err != nil {
		return err
	}
	if len(b) > 0 && b[len(b)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// value prints v as indented JSON, or YAML with --yaml.
func (p *printer) value(v interface{}) error {
	if p.yaml {
		// round trip through JSON so json.RawMessage values become plain data
		b, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "encode output")
		}
		var plain interface{}
		if err := json.Unmarshal(b, &plain); err != nil {
			return errors.Wrap(err, "encode output")
		}
		enc := yaml.NewEncoder(p.writer())
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return errors.Wrap(err, "encode output")
		}
		return enc.Close()
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode output")
	}
	_, err = fmt.Fprintln(p.writer(), string(b))
	return err
}
