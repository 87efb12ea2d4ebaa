package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "xdr"
)

// Ключи долговременного хранилища клиента
const (
	StorageKeyToken     = "xdr_token"
	StorageKeyUser      = "xdr_user"
	StorageKeyFavorites = "silverhouse-favorites"
)

// RedisStorageKey превращает ключ хранилища в ключ Redis: xdr:storage:{key}
func RedisStorageKey(key string) string {
	return RedisNamespace + ":storage:" + key
}
