package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "trustcenter"
)

// Ключи (состояние)
const (
	RedisKeySnapshotLatest = RedisNamespace + ":snapshot:latest"
	RedisKeyLockSnapshot   = RedisNamespace + ":lock:snapshot"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanSnapshotRefresh: запрос внеочередной загрузки всем инстансам ("instance:trigger").
	RedisChanSnapshotRefresh = RedisNamespace + ":snapshot:refresh"
	// RedisChanAlerts: KSI, перешедшие в failed (JSON domain.Regression).
	RedisChanAlerts = RedisNamespace + ":alerts"
)
