package common

import "os"

// DEFAULT_FILE_PERM is used for runner log files and any other file this
// module creates on the host's behalf.
const DEFAULT_FILE_PERM = os.FileMode(0644)
