package domain

// KeyPrefix namespaces every key this service writes to Redis.
const KeyPrefix = "trialmatch:"
