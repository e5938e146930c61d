package sru

import (
	"strings"
)

// Index is a CQL index name accepted by the Koha SRU server.
type Index string

const (
	ServerChoice  Index = "cql.serverChoice"
	DCTitle       Index = "dc.title"
	DCAuthor      Index = "dc.author"
	DCCreator     Index = "dc.creator"
	DCSubject     Index = "dc.subject"
	DCIdentifier  Index = "dc.identifier"
	DCDate        Index = "dc.date"
	DCPublisher   Index = "dc.publisher"
	DCDescription Index = "dc.description"
	BathISBN      Index = "bath.isbn"
	BathISSN      Index = "bath.issn"

	// Koha extensions, see the koha context set in pqf.properties.
	KohaTitle              Index = "koha.title"
	KohaAuthor             Index = "koha.author"
	KohaSubject            Index = "koha.subject"
	KohaISBN               Index = "koha.isbn"
	KohaISSN               Index = "koha.issn"
	KohaIdentifierStandard Index = "koha.identifier-standard"
	KohaLocalNumber        Index = "koha.local-number"
	KohaItemType           Index = "koha.itemtype"
)

var indexes = map[Index]bool{
	ServerChoice: true, DCTitle: true, DCAuthor: true, DCCreator: true,
	DCSubject: true, DCIdentifier: true, DCDate: true, DCPublisher: true,
	DCDescription: true, BathISBN: true, BathISSN: true, KohaTitle: true,
	KohaAuthor: true, KohaSubject: true, KohaISBN: true, KohaISSN: true,
	KohaIdentifierStandard: true, KohaLocalNumber: true, KohaItemType: true,
}

// Valid reports whether i is a known index.
func (i Index) Valid() bool {
	return indexes[i]
}

// Relation is a CQL relation.
type Relation string

const (
	Equals          Relation = "="
	ExactEquals     Relation = "=="
	NotEquals       Relation = "<>"
	LessThan        Relation = "<"
	GreaterThan     Relation = ">"
	LessOrEquals    Relation = "<="
	GreaterOrEquals Relation = ">="
	All             Relation = "all"
	Any             Relation = "any"
	Adjacent        Relation = "adj"
	Within          Relation = "within"
)

var relations = map[Relation]bool{
	Equals: true, ExactEquals: true, NotEquals: true, LessThan: true,
	GreaterThan: true, LessOrEquals: true, GreaterOrEquals: true, All: true,
	Any: true, Adjacent: true, Within: true,
}

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	return relations[r]
}

// symbolic relations are written without surrounding spaces.
func (r Relation) symbolic() bool {
	return strings.IndexFunc(string(r), isLetter) < 0
}

func isLetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// Boolean joins a clause to the next one.
type Boolean string

const (
	And Boolean = "and"
	Or  Boolean = "or"
	Not Boolean = "not"
)

// Valid reports whether b is a known boolean operator.
func (b Boolean) Valid() bool {
	return b == And || b == Or || b == Not
}

// Clause is one index, relation, term triple and the operator linking it to
// the following clause.
type Clause struct {
	Index    Index
	Relation Relation
	Term     string
	Bool     Boolean
}

func (c Clause) String() string {
	var sb strings.Builder
	c.write(&sb)
	return sb.String()
}

func (c Clause) write(sb *strings.Builder) {
	sb.WriteString(string(c.Index))
	if c.Relation.symbolic() {
		sb.WriteString(string(c.Relation))
	} else {
		sb.WriteByte(' ')
		sb.WriteString(string(c.Relation))
		sb.WriteByte(' ')
	}
	sb.WriteString(EscapeTerm(c.Term))
}

// BuildQuery renders clauses in order. The operator of the last clause is
// ignored, a missing operator defaults to and.
func BuildQuery(clauses ...Clause) string {
	var sb strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b := clauses[i-1].Bool
			if b == "" {
				b = And
			}
			sb.WriteByte(' ')
			sb.WriteString(string(b))
			sb.WriteByte(' ')
		}
		c.write(&sb)
	}
	return sb.String()
}

// RawQuery concatenates already rendered query fragments, e.g.
// RawQuery("dc.author=jean", " and dc.date=1997").
func RawQuery(parts ...string) string {
	return strings.Join(parts, "")
}

// EscapeTerm quotes a term when it is empty or holds whitespace or any of
// ()=<>"/. Inside quotes, backslash and double quote are escaped.
func EscapeTerm(term string) string {
	if term != "" && !strings.ContainsAny(term, " \t\r\n()=<>\"/") {
		return term
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range term {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}
