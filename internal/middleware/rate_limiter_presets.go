package middleware

// ConservativeRateLimiter - For unauthenticated endpoints (register, login, refresh)
// Burst: 10 requests, Sustained: 5 requests per second
func ConservativeRateLimiter() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   10,
		RefillRate: 5.0,
	}
}

// CustomRateLimiter - Create your own configuration
// Example: CustomRateLimiter(5, 2.0) = 5 burst, 2 req/sec
func CustomRateLimiter(capacity int, refillRate float64) *RateLimiterConfig {
	if capacity <= 0 || refillRate <= 0 {
		return DefaultRateLimiterConfig()
	}
	return &RateLimiterConfig{
		Capacity:   capacity,
		RefillRate: refillRate,
	}
}
