// Package learning binds the query cache to the learning platform API:
// loaders for every read view, the invalidation graph of every write,
// the HTTP client, and a Platform that wires them together.
//
// Package learning 将查询缓存绑定到学习平台API：每个读取视图的键、每个写入的失效图、
// HTTP客户端，以及将它们组装在一起的Platform。
package learning
