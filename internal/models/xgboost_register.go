//go:build !noxgboost

package models

func init() {
	DefaultRegistry.Register(FamilyXGBoost, func(p Params, seed int64) (Model, error) {
		return NewXGBoost(p, seed)
	})
}
