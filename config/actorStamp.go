package config

import (
	"reflect"

	"github.com/mmdatafocus/warehouse_backend/appctx"
	"gorm.io/gorm"
)

// ActorStampPlugin fills created_by on insert from the actor carried by the
// statement context. Explicitly set values are left alone.
type ActorStampPlugin struct{}

func NewActorStampPlugin() *ActorStampPlugin { return &ActorStampPlugin{} }

func (p *ActorStampPlugin) Name() string { return "actor_stamp" }

func (p *ActorStampPlugin) Initialize(db *gorm.DB) error {
	return db.Callback().Create().Before("gorm:create").Register("actor_stamp:create", actorStampCallback)
}

func actorStampCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	ctx := db.Statement.Context
	actor, ok := appctx.GetActor(ctx)
	if !ok || actor.UserId == 0 {
		return
	}
	field := db.Statement.Schema.LookUpField("CreatedBy")
	if field == nil {
		return
	}

	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(rv.Index(i))
			if _, zero := field.ValueOf(ctx, elem); zero {
				_ = field.Set(ctx, elem, actor.UserId)
			}
		}
	case reflect.Struct:
		if _, zero := field.ValueOf(ctx, rv); zero {
			_ = field.Set(ctx, rv, actor.UserId)
		}
	}
}
