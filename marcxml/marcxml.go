// Package marcxml checks that a document looks like a MARC-XML record before
// it is sent to Koha.
//
// The checks are shallow: only the direct children of the root element are
// counted, subfields are not inspected.
package marcxml

import (
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// Namespace is the MARC21 slim namespace.
const Namespace = "http://www.loc.gov/MARC21/slim"

const op = "validate record"

// Source is one of Text, Tree or File.
type Source interface {
	root() (*etree.Element, error)
}

// Text is a record held in memory as XML text.
type Text string

// Tree is a record that was already parsed.
type Tree struct {
	Element *etree.Element
}

// File is the path of a record on disk.
type File string

// SourceOf picks a source from optional inputs. In-memory data wins over a
// tree, which wins over a path.
func SourceOf(data string, tree *etree.Element, path string) Source {
	switch {
	case data != "":
		return Text(data)
	case tree != nil:
		return Tree{Element: tree}
	case path != "":
		return File(path)
	}
	return nil
}

func (t Text) root() (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(string(t)); err != nil {
		return nil, apierr.Wrap(apierr.InvalidXML, op, errors.Wrap(err, "data is invalid XML"))
	}
	return documentRoot(doc, "data is invalid XML")
}

func (t Tree) root() (*etree.Element, error) {
	if t.Element == nil {
		return nil, apierr.New(apierr.InvalidXML, op, "no data provided")
	}
	return t.Element, nil
}

func (f File) root() (*etree.Element, error) {
	if _, err := os.Stat(string(f)); err != nil {
		return nil, apierr.Wrap(apierr.FileNotFound, op, errors.Wrapf(err, "provided file %s does not exist", string(f)))
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(string(f)); err != nil {
		return nil, apierr.Wrap(apierr.InvalidXML, op, errors.Wrap(err, "provided file is invalid XML"))
	}
	return documentRoot(doc, "provided file is invalid XML")
}

// documentRoot returns the single root element of doc. etree reads past the
// first element, so a second element or text after it is rejected here.
func documentRoot(doc *etree.Document, msg string) (*etree.Element, error) {
	if len(doc.ChildElements()) != 1 {
		return nil, apierr.New(apierr.InvalidXML, op, msg+": want exactly one root element")
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return nil, apierr.New(apierr.InvalidXML, op, msg+": text outside the root element")
		}
	}
	return doc.Root(), nil
}

// Validate checks src and returns the re-serialized root element. Callers
// must send the returned bytes, not their input.
func Validate(src Source) ([]byte, error) {
	if src == nil {
		return nil, apierr.New(apierr.InvalidXML, op, "no data provided")
	}
	root, err := src.root()
	if err != nil {
		return nil, err
	}
	if err := checkStructure(root); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.SetRoot(root.Copy())
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, apierr.Wrap(apierr.InvalidXML, op, err)
	}
	return b, nil
}

func checkStructure(root *etree.Element) error {
	if n := countChildren(root, "leader"); n != 1 {
		return apierr.New(apierr.MissingOrDuplicateLeader, op, "valid XML but no (or too many) leader found")
	}
	if countChildren(root, "controlfield") < 1 {
		return apierr.New(apierr.MissingControlField, op, "valid XML but no controlfield found")
	}
	if countChildren(root, "datafield") < 1 {
		return apierr.New(apierr.MissingDataField, op, "valid XML but no datafield found")
	}
	return nil
}

// countChildren counts direct children of root named tag in the MARC
// namespace.
func countChildren(root *etree.Element, tag string) int {
	var n int
	for _, c := range root.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == Namespace {
			n++
		}
	}
	return n
}
