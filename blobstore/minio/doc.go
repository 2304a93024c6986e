// Package minio stores row-table files in MinIO or any other S3-compatible
// object store through the MinIO Go client.
//
// # Basic Usage
//
//	store, err := minio.New(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "tables",
//	    Prefix:    "expression/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = rowtable.Publish(ctx, "local.rtb", store, "study-1.rtb")
//	r, err := rowtable.OpenBlob(ctx, store, "study-1.rtb", "counts")
//
// Works with Ceph, Garage, SeaweedFS and similar services. No AWS SDK
// dependency is required.
package minio
