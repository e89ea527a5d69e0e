// Package all registers every writer type with writer.Default.
package all

import (
	// Initialize all writers
	_ "github.com/vocabstream/vocabstream/writer/async"
	_ "github.com/vocabstream/vocabstream/writer/elasticsearch"
	_ "github.com/vocabstream/vocabstream/writer/file"
	_ "github.com/vocabstream/vocabstream/writer/mongodb"
	_ "github.com/vocabstream/vocabstream/writer/mysql"
	_ "github.com/vocabstream/vocabstream/writer/postgres"
	_ "github.com/vocabstream/vocabstream/writer/rabbitmq"
	_ "github.com/vocabstream/vocabstream/writer/redis"
	_ "github.com/vocabstream/vocabstream/writer/rethinkdb"
)
