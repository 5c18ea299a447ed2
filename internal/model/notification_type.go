package model

import "github.com/lib/pq"

// NotificationType is a read-only row from the notification type
// registry. The engine treats it as configuration: it supplies default
// icon/sound/category and fallback delivery methods for a type key.
type NotificationType struct {
	Key                    string         `db:"type_key" json:"type_key"`
	Name                   string         `db:"name" json:"name"`
	Category               string         `db:"category" json:"category"`
	Icon                   string         `db:"icon" json:"icon"`
	Sound                  string         `db:"sound" json:"sound"`
	DefaultDeliveryMethods pq.StringArray `db:"default_delivery_methods" json:"default_delivery_methods"`
}
