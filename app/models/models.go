package models

// All returns every persisted model in dependency order, used by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&ProviderAccount{},
		&Brand{},
		&CarModel{},
		&Car{},
		&Coupon{},
		&UserCoupon{},
		&PointTransaction{},
		&PointCoupon{},
		&Referral{},
		&ReferralRule{},
		&Billing{},
		&SubscriptionRequest{},
		&Subscription{},
		&ButlerRequest{},
		&ButlerWayPoint{},
		&Butler{},
		&Payment{},
		&Review{},
		&ModelLike{},
		&ReviewLike{},
		&ModelRequest{},
		&Notice{},
		&Event{},
		&Ad{},
		&FAQ{},
		&Term{},
		&PrivacyPolicy{},
	}
}
