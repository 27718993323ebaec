package challenges

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	challengePrefix           = []byte("challenges/challenge/")
	challengeCounterKeyBytes  = []byte("challenges/challenge/counter")
	questPrefix               = []byte("challenges/quest/")
	questCounterKeyBytes      = []byte("challenges/quest/counter")
	challengeCompletionPrefix = []byte("challenges/completed/challenge/")
	questCompletionPrefix     = []byte("challenges/completed/quest/")
	challengeHistoryPrefix    = []byte("challenges/history/challenge/")
	questHistoryPrefix        = []byte("challenges/history/quest/")
)

func indexedKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func completionKey(prefix []byte, user common.Address, id uint64) []byte {
	key := make([]byte, len(prefix)+common.AddressLength+8)
	copy(key, prefix)
	copy(key[len(prefix):], user[:])
	binary.BigEndian.PutUint64(key[len(prefix)+common.AddressLength:], id)
	return key
}

func challengeKey(id uint64) []byte {
	return indexedKey(challengePrefix, id)
}

func questKey(id uint64) []byte {
	return indexedKey(questPrefix, id)
}

func challengeCounterKey() []byte {
	return append([]byte(nil), challengeCounterKeyBytes...)
}

func questCounterKey() []byte {
	return append([]byte(nil), questCounterKeyBytes...)
}

func challengeCompletionKey(user common.Address, id uint64) []byte {
	return completionKey(challengeCompletionPrefix, user, id)
}

func questCompletionKey(user common.Address, id uint64) []byte {
	return completionKey(questCompletionPrefix, user, id)
}

func historyKey(prefix []byte, user common.Address) []byte {
	key := make([]byte, len(prefix)+common.AddressLength)
	copy(key, prefix)
	copy(key[len(prefix):], user[:])
	return key
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}
