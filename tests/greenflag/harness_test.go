package greenflag

import (
	"testing"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/propagation"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// kitchenRegistry builds the tag schema the acceptance flows run over:
// the five Harper's Kitchen services with their documented field levels.
func kitchenRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()
	seed := []registry.FieldDescriptor{
		{Service: "userinfoservice", FieldPath: "userId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.RetainYears(7)}},
		{Service: "userinfoservice", FieldPath: "userEmail", Tag: registry.Tag{Level: classification.LevelSensitive, Retention: classification.DeleteOnRequest}},
		{Service: "userinfoservice", FieldPath: "deliveryAddress", Tag: registry.Tag{Level: classification.LevelHighlySensitive, Retention: classification.Retain1Year}},
		{Service: "userinfoservice", FieldPath: "userPassword", Tag: registry.Tag{Level: classification.LevelCritical, Retention: classification.DeleteOnRequest}, Required: true},

		{Service: "orderservice", FieldPath: "userId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.RetainYears(7)}},
		{Service: "orderservice", FieldPath: "orderId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.Retain1Year}},
		{Service: "orderservice", FieldPath: "deliveryAddress", Tag: registry.Tag{Level: classification.LevelHighlySensitive, Retention: classification.Retain1Year}},
		{Service: "orderservice", FieldPath: "amount", Tag: registry.Tag{Level: classification.LevelSensitive, Retention: classification.RetainYears(7)}},

		{Service: "paymentservice", FieldPath: "userId", Tag: registry.Tag{Level: classification.LevelInternal, Retention: classification.RetainYears(7)}},
		{Service: "paymentservice", FieldPath: "amount", Tag: registry.Tag{Level: classification.LevelSensitive, Retention: classification.RetainYears(7)}},
		{Service: "paymentservice", FieldPath: "cardNumber", Tag: registry.Tag{Level: classification.LevelCritical, Retention: classification.DeleteImmediately}},

		{Service: "restaurantservice", FieldPath: "restaurantName", Tag: registry.Tag{Level: classification.LevelPublic, Retention: classification.RetainIndefinite}},

		{Service: "foodcatalogservice", FieldPath: "foodName", Tag: registry.Tag{Level: classification.LevelPublic, Retention: classification.RetainIndefinite}},
	}
	for _, desc := range seed {
		if err := reg.Register(desc); err != nil {
			t.Fatalf("failed to seed registry: %v", err)
		}
	}
	return reg
}

func tag(level classification.Level, retention classification.RetentionPolicy) propagation.FieldTag {
	return propagation.FieldTag{Level: level, Retention: retention}
}

func payload(service string, fields map[string]propagation.FieldTag) *propagation.Payload {
	return &propagation.Payload{Service: service, Fields: fields}
}
