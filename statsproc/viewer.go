package statsproc

import (
	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/varint"
)

// DfChange is one decoded document-frequency delta from a message body.
type DfChange struct {
	TermType  string
	TermValue string
	Increment int64
	IsNew     bool
}

// MessageViewer reads back a message produced by MessageBuilder.FetchMessage.
// It is the supplement the distilled spec left implicit: whatever builds
// these frames on one side needs a matching reader on the other, and the
// original interface split those responsibilities into two types.
type MessageViewer struct {
	msg   []byte
	pos   int
	count int
	read  int

	nofDocsChange int
}

// NewMessageViewer decodes msg's header and prepares to iterate its df
// changes with Next.
func NewMessageViewer(msg []byte) (*MessageViewer, error) {
	v := &MessageViewer{msg: msg}

	u, n, err := varint.Unpack(msg)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptData, err, "statsproc: decode message header")
	}
	v.nofDocsChange = int(zigzagDecode(u))
	v.pos = n

	if v.pos > len(msg) {
		return nil, errs.New(errs.CorruptData, "statsproc: truncated message header")
	}
	cu, cn, err := varint.Unpack(msg[v.pos:])
	if err != nil {
		return nil, errs.Wrap(errs.CorruptData, err, "statsproc: decode df change count")
	}
	v.count = int(cu)
	v.pos += cn
	return v, nil
}

// NofDocumentsInsertedChange returns this message's header value.
func (v *MessageViewer) NofDocumentsInsertedChange() int { return v.nofDocsChange }

// Count returns the number of df changes the message body carries.
func (v *MessageViewer) Count() int { return v.count }

// Next decodes the next df change, returning ok=false once Count
// entries have been consumed.
func (v *MessageViewer) Next() (change DfChange, ok bool, err error) {
	if v.read >= v.count {
		return DfChange{}, false, nil
	}

	termType, err := v.readString()
	if err != nil {
		return DfChange{}, false, err
	}
	termValue, err := v.readString()
	if err != nil {
		return DfChange{}, false, err
	}

	u, n, err := varint.Unpack(v.msg[v.pos:])
	if err != nil {
		return DfChange{}, false, errs.Wrap(errs.CorruptData, err, "statsproc: decode df increment")
	}
	v.pos += n

	if v.pos >= len(v.msg) {
		return DfChange{}, false, errs.New(errs.CorruptData, "statsproc: truncated isnew flag")
	}
	isNew := v.msg[v.pos] != 0
	v.pos++

	v.read++
	return DfChange{
		TermType:  termType,
		TermValue: termValue,
		Increment: zigzagDecode(u),
		IsNew:     isNew,
	}, true, nil
}

func (v *MessageViewer) readString() (string, error) {
	if v.pos >= len(v.msg) {
		return "", errs.New(errs.CorruptData, "statsproc: truncated string length")
	}
	u, n, err := varint.Unpack(v.msg[v.pos:])
	if err != nil {
		return "", errs.Wrap(errs.CorruptData, err, "statsproc: decode string length")
	}
	v.pos += n
	end := v.pos + int(u)
	if end < v.pos || end > len(v.msg) {
		return "", errs.New(errs.CorruptData, "statsproc: string length exceeds message bounds")
	}
	s := string(v.msg[v.pos:end])
	v.pos = end
	return s, nil
}
