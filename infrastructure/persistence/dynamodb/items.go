package dynamodb

import (
	"time"

	"inventory/application/ports"
	"inventory/domain/core/entities"
)

// ObjectItem is an object or connection record
type ObjectItem struct {
	PK         string        `dynamodbav:"PK"`
	SK         string        `dynamodbav:"SK"`
	EntityType string        `dynamodbav:"EntityType"`
	ClassName  string        `dynamodbav:"ClassName"`
	UUID       string        `dynamodbav:"UUID,omitempty"`
	LegacyID   int64         `dynamodbav:"LegacyID,omitempty"`
	Name       string        `dynamodbav:"Name,omitempty"`
	ASide      *EndpointAttr `dynamodbav:"ASide,omitempty"`
	BSide      *EndpointAttr `dynamodbav:"BSide,omitempty"`
	GSI1PK     string        `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK     string        `dynamodbav:"GSI1SK,omitempty"`
	GSI2PK     string        `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK     string        `dynamodbav:"GSI2SK,omitempty"`
}

// EndpointAttr is the light copy of a connection endpoint kept on the
// connection record
type EndpointAttr struct {
	ClassName string `dynamodbav:"ClassName"`
	UUID      string `dynamodbav:"UUID,omitempty"`
	LegacyID  int64  `dynamodbav:"LegacyID,omitempty"`
	Name      string `dynamodbav:"Name,omitempty"`
}

// ViewItem is a saved view record
type ViewItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ViewID     string `dynamodbav:"ViewID"`
	OwnerClass string `dynamodbav:"OwnerClass"`
	OwnerID    string `dynamodbav:"OwnerID"`
	ViewClass  string `dynamodbav:"ViewClass"`
	Structure  []byte `dynamodbav:"Structure"`
	Background []byte `dynamodbav:"Background,omitempty"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
}

func (i ObjectItem) toEntity() entities.BusinessObject {
	return entities.BusinessObject{
		ClassName: i.ClassName,
		ID:        i.UUID,
		LegacyID:  i.LegacyID,
		Name:      i.Name,
	}
}

func (i ObjectItem) toConnection() entities.Connection {
	conn := entities.Connection{Object: i.toEntity()}
	if i.ASide != nil {
		conn.ASide = i.ASide.toEntity()
	}
	if i.BSide != nil {
		conn.BSide = i.BSide.toEntity()
	}
	return conn
}

func (i ObjectItem) toRecord() ports.ObjectRecord {
	return ports.ObjectRecord{
		InternalID: i.LegacyID,
		ClassName:  i.ClassName,
		UUID:       i.UUID,
		Name:       i.Name,
	}
}

func (e EndpointAttr) toEntity() entities.BusinessObject {
	return entities.BusinessObject{
		ClassName: e.ClassName,
		ID:        e.UUID,
		LegacyID:  e.LegacyID,
		Name:      e.Name,
	}
}

func (v ViewItem) toStoredView() *ports.StoredView {
	updated, _ := time.Parse(time.RFC3339Nano, v.UpdatedAt)
	return &ports.StoredView{
		ID:         v.ViewID,
		Owner:      ports.ObjectKey{ClassName: v.OwnerClass, ID: v.OwnerID},
		ViewClass:  v.ViewClass,
		Structure:  v.Structure,
		Background: v.Background,
		UpdatedAt:  updated,
	}
}

func (v ViewItem) toStoredDocument() ports.StoredDocument {
	return ports.StoredDocument{
		ViewID:    v.ViewID,
		Owner:     ports.ObjectKey{ClassName: v.OwnerClass, ID: v.OwnerID},
		ViewClass: v.ViewClass,
		Structure: v.Structure,
	}
}
