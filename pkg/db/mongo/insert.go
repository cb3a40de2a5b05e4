package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertWithID stores doc under a freshly generated ObjectID using an upsert
// with $setOnInsert, so a retried attempt after an ambiguous failure cannot
// create a second document. doc must not carry its own _id.
func InsertWithID(ctx context.Context, coll *mongo.Collection, policy RetryPolicy, doc any) (string, error) {
	id := primitive.NewObjectID()

	err := Do(ctx, policy, func(ctx context.Context) error {
		_, err := coll.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}

	return id.Hex(), nil
}

// ObjectIDs converts hex ids, skipping the ones that are not valid ObjectIDs.
func ObjectIDs(ids []string) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, oid)
	}
	return out
}
