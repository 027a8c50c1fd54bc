package runtime

// RemoteSeparator joins the remote argument and the oid. It is always "/",
// whatever the local platform uses, because the remote side is a tool
// address (rclone remote, scp host:path), not a local path.
const RemoteSeparator = "/"

// RemoteLocation returns where the object oid lives on the remote.
// The result is remote + "/" + oid, with no cleaning or deduplication.
func RemoteLocation(remote, oid string) string {
	return remote + RemoteSeparator + oid
}
