// Package value implements the tagged-variant property value model of
// §3.2/§9: a typed, optionally language-tagged scalar or one-dimensional
// array, plus arbitrary preserved XML. It underlies both the dead
// property store (propstore) and the live properties exposed by a
// Resource, and is serialized to and from the wire by the xml package.
package value

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int64
	Uint64
	Float64
	DecimalKind
	String
	Bytes
	Time
	DateOnly
	Duration
	Uri
	Uuid
	QName
	XML
	Array
)

// QualName is a (namespace, local) pair, used both as a property name and
// as the value of an xs:QName-typed property.
type QualName struct {
	Space, Local string
}

func (q QualName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return q.Space + ":" + q.Local
}

// Value is the tagged variant described in design note §9. Exactly one of
// the typed fields is meaningful, selected by Kind. Lang carries the
// surface form of an inherited or explicit xml:lang (RFC 5646); it is
// empty when no language applies.
type Value struct {
	Kind Kind
	Lang string

	B  bool
	I  int64
	U  uint64
	F  float64
	D  decimal.Decimal
	S  string
	By []byte
	T  time.Time
	Dur time.Duration
	Ur string
	Id uuid.UUID
	QN QualName
	El *etree.Element
	Ar []Value
}

func NewBool(b bool) Value        { return Value{Kind: Bool, B: b} }
func NewInt64(i int64) Value      { return Value{Kind: Int64, I: i} }
func NewUint64(u uint64) Value    { return Value{Kind: Uint64, U: u} }
func NewFloat64(f float64) Value  { return Value{Kind: Float64, F: f} }
func NewDecimal(d decimal.Decimal) Value { return Value{Kind: DecimalKind, D: d} }
func NewString(s string) Value    { return Value{Kind: String, S: s} }
func NewBytes(b []byte) Value     { return Value{Kind: Bytes, By: b} }
func NewTime(t time.Time) Value   { return Value{Kind: Time, T: t} }
func NewDate(t time.Time) Value   { return Value{Kind: DateOnly, T: t} }
func NewDuration(d time.Duration) Value { return Value{Kind: Duration, Dur: d} }
func NewUri(u string) Value       { return Value{Kind: Uri, Ur: u} }
func NewUUID(id uuid.UUID) Value  { return Value{Kind: Uuid, Id: id} }
func NewQName(q QualName) Value   { return Value{Kind: QName, QN: q} }
func NewXML(el *etree.Element) Value { return Value{Kind: XML, El: el} }
func NewArray(vs []Value) Value   { return Value{Kind: Array, Ar: vs} }

// WithLang returns a copy of v carrying the given RFC 5646 language tag.
// An invalid tag is rejected so stored properties never round-trip a
// malformed xml:lang.
func (v Value) WithLang(tag string) (Value, error) {
	if tag != "" {
		if _, err := language.Parse(tag); err != nil {
			return v, fmt.Errorf("value: invalid xml:lang %q: %w", tag, err)
		}
	}
	v.Lang = tag
	return v, nil
}

// XSDType returns the canonical xsi:type local name used for type
// inference (§4.4) when a property has no declared/protected type.
// Array, XML and Null have no type name and return "". NewArray does not
// check its elements, so an array nested in an array is not rejected.
func (k Kind) XSDType() string {
	switch k {
	case Bool:
		return "xs:boolean"
	case Int64:
		return "xs:int"
	case Uint64:
		return "xs:unsignedLong"
	case Float64:
		return "xs:double"
	case DecimalKind:
		return "xs:decimal"
	case String:
		return "xs:string"
	case Bytes:
		return "xs:base64Binary"
	case Time:
		return "xs:dateTime"
	case DateOnly:
		return "xs:date"
	case Duration:
		return "xs:duration"
	case Uri:
		return "xs:anyURI"
	case Uuid:
		return "xs:string"
	case QName:
		return "xs:QName"
	default:
		return ""
	}
}

// Marshal renders the value's chardata form per the declared (or
// inferred) typ. typ == "xs:hexBinary" selects hex encoding for a Bytes
// value instead of the xs:base64Binary default (§4.4).
func (v Value) Marshal(typ string) (string, error) {
	switch v.Kind {
	case Null:
		return "", nil
	case Bool:
		return strconv.FormatBool(v.B), nil
	case Int64:
		return strconv.FormatInt(v.I, 10), nil
	case Uint64:
		return strconv.FormatUint(v.U, 10), nil
	case Float64:
		return strconv.FormatFloat(v.F, 'g', -1, 64), nil
	case DecimalKind:
		return v.D.String(), nil
	case String:
		return v.S, nil
	case Bytes:
		if typ == "xs:hexBinary" {
			return hex.EncodeToString(v.By), nil
		}
		return base64.StdEncoding.EncodeToString(v.By), nil
	case Time:
		if typ == "xs:date" {
			return v.T.Format("2006-01-02"), nil
		}
		return v.T.UTC().Format(time.RFC3339), nil
	case DateOnly:
		return v.T.Format("2006-01-02"), nil
	case Duration:
		return formatDuration(v.Dur), nil
	case Uri:
		return v.Ur, nil
	case Uuid:
		return v.Id.String(), nil
	case QName:
		return v.QN.String(), nil
	case Array:
		parts := make([]string, len(v.Ar))
		for i, e := range v.Ar {
			s, err := e.Marshal(typ)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("value: cannot marshal kind %d as chardata", v.Kind)
	}
}

// formatDuration renders an absolute time.Duration as an xs:duration
// literal (PnDTnHnMnS); calendar durations (years/months) are not
// representable by time.Duration and are out of scope here.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	neg := d < 0
	if neg {
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d.Seconds() - float64(m)*60 - float64(h)*3600 + float64(m)*60 // seconds remainder only
	_ = s
	secs := d.Seconds()
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sPT%dH%dM%gS", sign, h, m, secs)
}

// Unmarshal parses chardata s according to the XSD type name typ into a
// Value, validating it against that type (§3.2 invariant: "if a type is
// specified, the value must validate against it").
func Unmarshal(s, typ string) (Value, error) {
	switch typ {
	case "", "xs:string":
		return NewString(s), nil
	case "xs:boolean":
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:boolean %q: %w", s, err)
		}
		return NewBool(b), nil
	case "xs:int", "xs:integer", "xs:long", "xs:short", "xs:byte":
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid %s %q: %w", typ, s, err)
		}
		return NewInt64(i), nil
	case "xs:unsignedLong", "xs:unsignedInt", "xs:nonNegativeInteger":
		u, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid %s %q: %w", typ, s, err)
		}
		return NewUint64(u), nil
	case "xs:double", "xs:float":
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid %s %q: %w", typ, s, err)
		}
		return NewFloat64(f), nil
	case "xs:decimal":
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:decimal %q: %w", s, err)
		}
		return NewDecimal(d), nil
	case "xs:base64Binary":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:base64Binary %q: %w", s, err)
		}
		return NewBytes(b), nil
	case "xs:hexBinary":
		b, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:hexBinary %q: %w", s, err)
		}
		return NewBytes(b), nil
	case "xs:dateTime":
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:dateTime %q: %w", s, err)
		}
		return NewTime(t), nil
	case "xs:date":
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid xs:date %q: %w", s, err)
		}
		return NewDate(t), nil
	case "xs:duration":
		d, err := parseXSDDuration(strings.TrimSpace(s))
		if err != nil {
			return Value{}, err
		}
		return NewDuration(d), nil
	case "xs:anyURI":
		return NewUri(s), nil
	case "xs:QName":
		return NewQName(parseQName(s)), nil
	default:
		return Value{}, fmt.Errorf("value: unknown type %q", typ)
	}
}

func parseQName(s string) QualName {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return QualName{Local: s}
	}
	return QualName{Space: s[:idx], Local: s[idx+1:]}
}

// parseXSDDuration parses the absolute (no year/month component) subset
// of xs:duration: PnDTnHnMnS.
func parseXSDDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("value: invalid xs:duration %q", orig)
	}
	s = s[1:]
	var days, hours, mins int64
	var secs float64

	datePart, timePart, hasTime := strings.Cut(s, "T")
	if d, ok := cutSuffix(datePart, "D"); ok {
		days, _ = strconv.ParseInt(d, 10, 64)
	}
	if hasTime {
		rest := timePart
		if h, r, ok := cutUnit(rest, "H"); ok {
			hours, _ = strconv.ParseInt(h, 10, 64)
			rest = r
		}
		if m, r, ok := cutUnit(rest, "M"); ok {
			mins, _ = strconv.ParseInt(m, 10, 64)
			rest = r
		}
		if sv, _, ok := cutUnit(rest, "S"); ok {
			secs, _ = strconv.ParseFloat(sv, 64)
		}
	}
	total := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second))
	if neg {
		total = -total
	}
	return total, nil
}

func cutSuffix(s, suffix string) (string, bool) {
	if strings.HasSuffix(s, suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}

func cutUnit(s, unit string) (val, rest string, ok bool) {
	idx := strings.Index(s, unit)
	if idx < 0 {
		return "", s, false
	}
	return s[:idx], s[idx+1:], true
}
