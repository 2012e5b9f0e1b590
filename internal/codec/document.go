package codec

import (
	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// RequiredFieldSet returns the required fields for a variant: the
// common name/created_at/last_modified fields plus the variant's own.
// id and variant are checked by Encode/Decode themselves and are not
// listed here.
func RequiredFieldSet(v model.Variant) map[model.FieldID]model.FieldType {
	common := map[model.FieldID]model.FieldType{
		model.FieldID_Name:         model.TypeString,
		model.FieldID_CreatedAt:    model.TypeI64,
		model.FieldID_LastModified: model.TypeI64,
	}
	switch {
	case v.IsResource():
		common[model.FieldID_Visibility] = model.TypeU8
		common[model.FieldID_ContentLen] = model.TypeU64
		common[model.FieldID_Count] = model.TypeU64
	case v == model.VariantUser:
		common[model.FieldID_Email] = model.TypeString
		common[model.FieldID_GlobalAdmin] = model.TypeBool
	case v == model.VariantToken:
		common[model.FieldID_ExpiresAt] = model.TypeI64
	case v == model.VariantRealm:
		common[model.FieldID_Tag] = model.TypeString
	}
	return common
}

// EncodeNode converts a model.Node into its on-disk Document.
func EncodeNode(n model.Node) (model.Variant, Document, error) {
	doc := make(Document)
	id := n.GetID()
	doc[model.FieldID_ID] = id[:]
	doc.SetString(model.FieldID_Name, n.GetName())

	switch v := n.(type) {
	case model.ResourceNode:
		doc.SetString(model.FieldID_Description, v.Description)
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		doc[model.FieldID_Labels] = EncodeLabels(v.Labels)
		doc[model.FieldID_Identifiers] = EncodeIdentifiers(v.Identifiers)
		doc.SetU64(model.FieldID_ContentLen, v.ContentLen)
		doc.SetU64(model.FieldID_Count, v.Count)
		doc[model.FieldID_Visibility] = []byte{byte(v.Visibility)}
		doc[model.FieldID_Authors] = EncodeAuthors(v.Authors)
		doc.SetBool(model.FieldID_Locked, v.Locked)
		doc.SetString(model.FieldID_License, v.LicenseTag)
		doc[model.FieldID_Hashes] = EncodeHashes(v.Hashes)
		doc[model.FieldID_Location] = EncodeLocations(v.Location)
		doc.SetString(model.FieldID_Tag, v.Title)
		return v.Variant, doc, nil
	case model.UserNode:
		doc.SetString(model.FieldID_Description, v.Description)
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		doc.SetString(model.FieldID_FirstName, v.FirstName)
		doc.SetString(model.FieldID_LastName, v.LastName)
		doc.SetString(model.FieldID_Email, v.Email)
		doc.SetBoolFlag(model.FieldID_GlobalAdmin, 0, v.GlobalAdmin)
		doc.SetBoolFlag(model.FieldID_GlobalAdmin, 1, v.Active)
		doc[model.FieldID_Identifiers] = EncodeIdentifiers(v.Identifiers)
		return model.VariantUser, doc, nil
	case model.ServiceAccountNode:
		doc.SetString(model.FieldID_Description, v.Description)
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		return model.VariantServiceAccount, doc, nil
	case model.TokenNode:
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		doc.SetI64(model.FieldID_ExpiresAt, v.ExpiresAt)
		return model.VariantToken, doc, nil
	case model.GroupNode:
		doc.SetString(model.FieldID_Description, v.Description)
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		return model.VariantGroup, doc, nil
	case model.RealmNode:
		doc.SetString(model.FieldID_Description, v.Description)
		doc.SetI64(model.FieldID_CreatedAt, v.CreatedAt)
		doc.SetI64(model.FieldID_LastModified, v.LastModified)
		doc.SetString(model.FieldID_Tag, v.Tag)
		return model.VariantRealm, doc, nil
	default:
		return 0, nil, apierror.New(apierror.KindConversionError, "unknown node type")
	}
}

// DecodeNode parses raw into the variant-specific Node it represents.
func DecodeNode(raw []byte) (model.Node, error) {
	variant, doc, err := Decode(raw, nil)
	if err != nil {
		return nil, err
	}
	required := RequiredFieldSet(variant)
	for id := range required {
		if _, ok := doc[id]; !ok {
			return nil, apierror.New(apierror.KindParseError, "missing required field for variant")
		}
	}

	var id model.ID
	copy(id[:], doc[model.FieldID_ID])
	name, _ := doc.GetString(model.FieldID_Name)
	createdAt, _ := doc.GetI64(model.FieldID_CreatedAt)
	lastModified, _ := doc.GetI64(model.FieldID_LastModified)
	description, _ := doc.GetString(model.FieldID_Description)

	switch {
	case variant.IsResource():
		labels, err := decodeOptLabels(doc)
		if err != nil {
			return nil, err
		}
		identifiers, err := decodeOptIdentifiers(doc, model.FieldID_Identifiers)
		if err != nil {
			return nil, err
		}
		authors, err := decodeOptAuthors(doc)
		if err != nil {
			return nil, err
		}
		hashes, err := decodeOptHashes(doc)
		if err != nil {
			return nil, err
		}
		locations, err := decodeOptLocations(doc)
		if err != nil {
			return nil, err
		}
		contentLen, _ := doc.GetU64(model.FieldID_ContentLen)
		count, _ := doc.GetU64(model.FieldID_Count)
		visRaw, _ := doc.GetField(model.FieldID_Visibility)
		var vis model.Visibility
		if len(visRaw) == 1 {
			vis = model.Visibility(visRaw[0])
		}
		locked, _ := doc.GetBool(model.FieldID_Locked)
		license, _ := doc.GetString(model.FieldID_License)
		title, _ := doc.GetString(model.FieldID_Tag)
		return model.ResourceNode{
			Common:      mkCommon(id, name, description, createdAt, lastModified),
			Variant:     variant,
			Labels:      labels,
			Identifiers: identifiers,
			ContentLen:  contentLen,
			Count:       count,
			Visibility:  vis,
			Authors:     authors,
			Locked:      locked,
			LicenseTag:  license,
			Hashes:      hashes,
			Location:    locations,
			Title:       title,
		}, nil
	case variant == model.VariantUser:
		firstName, _ := doc.GetString(model.FieldID_FirstName)
		lastName, _ := doc.GetString(model.FieldID_LastName)
		email, _ := doc.GetString(model.FieldID_Email)
		globalAdmin, _ := doc.GetBoolFlag(model.FieldID_GlobalAdmin, 0)
		active, _ := doc.GetBoolFlag(model.FieldID_GlobalAdmin, 1)
		identifiers, err := decodeOptIdentifiers(doc, model.FieldID_Identifiers)
		if err != nil {
			return nil, err
		}
		return model.UserNode{
			Common:      mkCommon(id, name, description, createdAt, lastModified),
			FirstName:   firstName,
			LastName:    lastName,
			Email:       email,
			GlobalAdmin: globalAdmin,
			Active:      active,
			Identifiers: identifiers,
		}, nil
	case variant == model.VariantServiceAccount:
		return model.ServiceAccountNode{Common: mkCommon(id, name, description, createdAt, lastModified)}, nil
	case variant == model.VariantToken:
		expiresAt, _ := doc.GetI64(model.FieldID_ExpiresAt)
		return model.TokenNode{
			Common:    mkCommon(id, name, description, createdAt, lastModified),
			ExpiresAt: expiresAt,
		}, nil
	case variant == model.VariantGroup:
		return model.GroupNode{Common: mkCommon(id, name, description, createdAt, lastModified)}, nil
	case variant == model.VariantRealm:
		tag, _ := doc.GetString(model.FieldID_Tag)
		return model.RealmNode{
			Common: mkCommon(id, name, description, createdAt, lastModified),
			Tag:    tag,
		}, nil
	default:
		return nil, apierror.New(apierror.KindConversionError, "unrecognized variant")
	}
}

func mkCommon(id model.ID, name, description string, createdAt, lastModified int64) model.Common {
	return model.Common{
		ID:           id,
		Name:         name,
		Description:  description,
		CreatedAt:    createdAt,
		LastModified: lastModified,
	}
}

func decodeOptLabels(doc Document) ([]model.Label, error) {
	raw, ok := doc.GetField(model.FieldID_Labels)
	if !ok {
		return nil, nil
	}
	return DecodeLabels(raw)
}

func decodeOptIdentifiers(doc Document, id model.FieldID) ([]string, error) {
	raw, ok := doc.GetField(id)
	if !ok {
		return nil, nil
	}
	return DecodeIdentifiers(raw)
}

func decodeOptAuthors(doc Document) ([]model.Author, error) {
	raw, ok := doc.GetField(model.FieldID_Authors)
	if !ok {
		return nil, nil
	}
	return DecodeAuthors(raw)
}

func decodeOptHashes(doc Document) ([]model.Hash, error) {
	raw, ok := doc.GetField(model.FieldID_Hashes)
	if !ok {
		return nil, nil
	}
	return DecodeHashes(raw)
}

func decodeOptLocations(doc Document) ([]model.Location, error) {
	raw, ok := doc.GetField(model.FieldID_Location)
	if !ok {
		return nil, nil
	}
	return DecodeLocations(raw)
}
