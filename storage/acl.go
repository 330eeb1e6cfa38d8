package storage

import (
	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
)

// updateAcl stages the symmetric AclBlock(docno)/UserAclBlock(userno)
// update for one document's access-right change: grant adds docno to
// every granted user's UserAclBlock and every granted userno to the
// doc's AclBlock; revoke does the reverse. AclBlock and UserAclBlock are
// mutual inverses and are always written together so the ACL-symmetry
// invariant (user in AclBlock(doc) iff doc in UserAclBlock(user)) never
// observes an intermediate state across a commit.
func updateAcl(kv kvstore.KvStore, batch kvstore.Batch, docno ids.Index, grant, revoke []ids.Index) error {
	if len(grant) == 0 && len(revoke) == 0 {
		return nil
	}

	grantElems := toUint32(grant)
	revokeElems := toUint32(revoke)
	if err := mergeBooleanContext(kv, batch, AclBlockPrefix, []ids.Index{docno}, grantElems, revokeElems); err != nil {
		return err
	}

	docElem := []uint32{uint32(docno)}
	for _, userno := range grant {
		if err := mergeBooleanContext(kv, batch, UserAclBlockPrefix, []ids.Index{userno}, docElem, nil); err != nil {
			return err
		}
	}
	for _, userno := range revoke {
		if err := mergeBooleanContext(kv, batch, UserAclBlockPrefix, []ids.Index{userno}, nil, docElem); err != nil {
			return err
		}
	}
	return nil
}

func toUint32(idx []ids.Index) []uint32 {
	out := make([]uint32, len(idx))
	for i, v := range idx {
		out[i] = uint32(v)
	}
	return out
}

// userHasAccess reports whether userno can see docno, by reading the
// doc's AclBlock context directly (used by the query evaluator's ACL
// filter, not this package's own tests, which exercise it through
// Storage.CheckAccess).
func userHasAccess(kv kvstore.KvStore, docno, userno ids.Index) (bool, error) {
	ctxPrefix := AclBlockContext(docno)
	entries, err := scanBlocks(kv, ctxPrefix, blockformat.KindBoolean)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		view, err := blockformat.DecodeBooleanBlock(e.block)
		if err != nil {
			return false, err
		}
		if view.Contains(userno) {
			return true, nil
		}
	}
	return false, nil
}
