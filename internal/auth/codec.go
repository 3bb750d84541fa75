package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shashiranjanraj/storefront/pkg/store"
)

func decodeUser(doc store.Doc) (userDoc, error) {
	var u userDoc
	if err := json.Unmarshal(doc.Data, &u); err != nil {
		return userDoc{}, fmt.Errorf("auth: decode user %s: %w", doc.ID, err)
	}
	return u, nil
}

func getUser(ctx context.Context, col store.Collection, id string) (userDoc, error) {
	doc, err := col.Get(ctx, id)
	if err != nil {
		return userDoc{}, err
	}
	return decodeUser(doc)
}

func insertUser(ctx context.Context, col store.Collection, id string, u userDoc) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return col.Insert(ctx, store.Doc{ID: id, Data: data})
}

func updateUser(ctx context.Context, col store.Collection, id string, u userDoc) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return col.Update(ctx, store.Doc{ID: id, Data: data})
}
