// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package postgres

// SchemaVersion identifies the entries/deps schema created by Init.
// It is bumped whenever the schema shape changes in a way that is not
// backward compatible; this adapter supports exactly one version and
// does not attempt to migrate older ones (see DESIGN.md: the teacher's
// versioned multi-schema migration engine was dropped as out of scope
// for this spec).
const SchemaVersion = 1
