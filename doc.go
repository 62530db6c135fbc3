// Package negentropy implements the negentropy range-based set-reconciliation
// protocol: two parties each hold a set of (timestamp, id) items, exchange a
// handful of binary frames, and the initiating party learns which items it is
// missing (need) and which items the other side is missing (have). Neither
// side ever transmits the items themselves, only identifiers.
//
// A session always looks the same from the initiator's side:
//
//	eng, _ := negentropy.New(16, 0)
//	eng.Add(0, id1)
//	eng.Add(1, id2)
//	eng.Seal()
//	frame, _ := eng.Initiate()
//	for {
//		frame = sendToPeerAndGetReply(frame)
//		have, need, reply, done, _ := eng.ReconcileWithIDs(frame)
//		// ... collect have/need ...
//		if done {
//			break
//		}
//		frame = reply
//	}
//
// The non-initiating side runs the same store discipline but calls Reconcile
// instead, which never returns have/need — only the initiator ever learns the
// set difference.
package negentropy
