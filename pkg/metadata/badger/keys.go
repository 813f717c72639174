package badger

import (
	"strings"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records live under prefixed keys. IDs are
// UUIDs and never contain ':', which keeps composite keys unambiguous.
//
// Data Type            Prefix  Key Format                       Value
// ==========================================================================
// User                 "u:"    u:<userID>                       User (JSON)
// Username index       "un:"   un:<lower(username)>             userID
// Email index          "ue:"   ue:<lower(email)>                userID
// Graylist entry       "gl:"   gl:<entryID>                     GraylistEntry (JSON)
// File                 "f:"    f:<fileID>                       File (JSON)
// Grant                "g:"    g:<fileID>:<userID>              empty
// Comment              "cm:"   cm:<fileID>:<commentID>          Comment (JSON)
// Comment index        "ci:"   ci:<commentID>                   fileID
// Friend request       "fr:"   fr:<requestID>                   FriendRequest (JSON)
// Friendship           "fs:"   fs:<low>:<high>                  Friendship (JSON)
// Block                "b:"    b:<blockerID>:<blockedID>        Block (JSON)
// Thread               "t:"    t:<threadID>                     Thread (JSON)
// Thread pair index    "tp:"   tp:<low>:<high>                  threadID
// Message              "m:"    m:<threadID>:<messageID>         Message (JSON)
// Notification         "n:"    n:<notificationID>               Notification (JSON)
//
// Comments and messages are keyed under their parent so that RemoveFile and
// ListMessages are prefix scans.
const (
	prefixUser         = "u:"
	prefixUsername     = "un:"
	prefixEmail        = "ue:"
	prefixGraylist     = "gl:"
	prefixFile         = "f:"
	prefixGrant        = "g:"
	prefixComment      = "cm:"
	prefixCommentIndex = "ci:"
	prefixRequest      = "fr:"
	prefixFriendship   = "fs:"
	prefixBlock        = "b:"
	prefixThread       = "t:"
	prefixThreadPair   = "tp:"
	prefixMessage      = "m:"
	prefixNotification = "n:"
)

func keyUser(id string) []byte { return []byte(prefixUser + id) }

func keyUsername(username string) []byte {
	return []byte(prefixUsername + strings.ToLower(username))
}

func keyEmail(email string) []byte {
	return []byte(prefixEmail + strings.ToLower(email))
}

func keyGraylist(id string) []byte { return []byte(prefixGraylist + id) }

func keyFile(id string) []byte { return []byte(prefixFile + id) }

func keyGrant(fileID, userID string) []byte {
	return []byte(prefixGrant + fileID + ":" + userID)
}

func keyGrantPrefix(fileID string) []byte {
	return []byte(prefixGrant + fileID + ":")
}

func keyComment(fileID, commentID string) []byte {
	return []byte(prefixComment + fileID + ":" + commentID)
}

func keyCommentPrefix(fileID string) []byte {
	return []byte(prefixComment + fileID + ":")
}

func keyCommentIndex(commentID string) []byte {
	return []byte(prefixCommentIndex + commentID)
}

func keyRequest(id string) []byte { return []byte(prefixRequest + id) }

func keyFriendship(pair metadata.Pair) []byte {
	return []byte(prefixFriendship + pair.Key())
}

func keyBlock(blockerID, blockedID string) []byte {
	return []byte(prefixBlock + blockerID + ":" + blockedID)
}

func keyThread(id string) []byte { return []byte(prefixThread + id) }

func keyThreadPair(pair metadata.Pair) []byte {
	return []byte(prefixThreadPair + pair.Key())
}

func keyMessage(threadID, messageID string) []byte {
	return []byte(prefixMessage + threadID + ":" + messageID)
}

func keyMessagePrefix(threadID string) []byte {
	return []byte(prefixMessage + threadID + ":")
}

func keyNotification(id string) []byte { return []byte(prefixNotification + id) }

// splitKey returns the two ':'-separated IDs following prefix.
func splitKey(key []byte, prefix string) (string, string) {
	rest := strings.TrimPrefix(string(key), prefix)
	first, second, _ := strings.Cut(rest, ":")
	return first, second
}
