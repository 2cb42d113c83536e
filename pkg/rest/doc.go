// Package rest serves the entities of a catalog as REST resources backed by
// PostgreSQL.
//
// Every entity is exposed on a collection path and an item path:
//
//	Method  | Path            | Operation                          | Success
//	--------|-----------------|------------------------------------|--------
//	GET     | /{path}/        | list one page                      | 200
//	POST    | /{path}/        | create, body is the new object     | 201, new id
//	GET     | /{path}/{id}    | read one                           | 200
//	PUT     | /{path}/{id}    | replace writable fields            | 204
//	PATCH   | /{path}/{id}    | update the given fields            | 204
//	DELETE  | /{path}/{id}    | delete                             | 204
//	OPTIONS | either          | describe the fields                | 200
//
// Any other method answers 405 with an Allow header naming the methods of the
// addressed path. GET / lists the collection path of every entity and
// GET /healthz pings the database.
//
// Query parameters of the list operation:
//
//	Parameter             | Description
//	----------------------|------------------------------------------------
//	?page=2               | 1-based page number (default: 1)
//	?page_size=50         | Rows per page (default: 10)
//	?sort=title,id:desc   | Sort fields, each optionally :asc or :desc
//	?compact=true         | Unindented JSON (also accepted on read)
//
// Sort fields that do not name a readable column are ignored. Rows are always
// ordered by primary key last so that pages are stable.
//
// Each request runs in one database transaction, committed when the response
// status is below 400 and rolled back otherwise. Updates lock the row with
// SELECT ... FOR UPDATE, so concurrent writers to the same row are serialized.
//
// Errors are JSON objects with "message", "code" and "description":
//
//	Status | Cause
//	-------|------------------------------------------------------------------
//	400    | body is not a JSON object
//	404    | no row with that id
//	405    | method does not fit the path
//	422    | validation failed (description maps fields to messages), or the
//	       | database rejected the change (description "Database error")
//
// Example usage:
//
//	cat, err := sakila.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	server := rest.NewServer(pool, cat, rest.WithLogger(logger))
//	log.Fatal(server.Start(":8080"))
package rest
