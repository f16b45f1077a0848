package dynamodb

import (
	"fmt"
	"strconv"

	"inventory/domain/core/entities"
)

// Single-table layout
//
//	object:     PK=OBJECT#<identity>  SK=METADATA
//	            GSI1PK=PARENT#<parent identity>  GSI1SK=CHILD#<seq>  (children)
//	            GSI1SK=CONN#<seq>                                   (connections)
//	            GSI2PK=LEGACY#<legacy id>  GSI2SK=OBJECT
//	view:       PK=VIEW#<view id>  SK=METADATA
//	            GSI1PK=PARENT#<owner identity>  GSI1SK=VIEW#<view class>
//	lock:       PK=LOCK#<resource>  SK=LOCK
const (
	skMetadata = "METADATA"

	entityObject     = "OBJECT"
	entityConnection = "CONNECTION"
	entityView       = "VIEW"

	prefixChild      = "CHILD#"
	prefixConnection = "CONN#"
	prefixView       = "VIEW#"
)

func objectPK(identity string) string {
	return "OBJECT#" + identity
}

func parentPK(identity string) string {
	return "PARENT#" + identity
}

func legacyPK(id int64) string {
	return "LEGACY#" + strconv.FormatInt(id, 10)
}

func viewPK(viewID string) string {
	return "VIEW#" + viewID
}

func viewSK(viewClass string) string {
	return prefixView + viewClass
}

func lockPK(resource string) string {
	return "LOCK#" + resource
}

func childSK(prefix string, seq int) string {
	return fmt.Sprintf("%s%010d", prefix, seq)
}

func uuidIdentity(id string) string {
	return entities.BusinessObject{ID: id}.Identity()
}
