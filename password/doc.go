// Package password hashes and verifies passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<threads>$<salt>$<key>
//
// The stub API stores account passwords with it. [Hasher.NeedsRehash] reports
// hashes produced with weaker parameters than the hasher's own.
package password
