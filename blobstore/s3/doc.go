// Package s3 stores row-table files in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tables/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = rowtable.Publish(ctx, "local.rtb", store, "study-1.rtb")
//	r, err := rowtable.OpenBlob(ctx, store, "study-1.rtb", "counts")
//
// # Features
//
//   - Range reads, so a reader only fetches the rows it asks for
//   - Streaming multipart uploads through the SDK upload manager
//   - CRC32C integrity checks on single-part puts
//   - DDBCommitStore: versioned publication with DynamoDB conditional writes
package s3
