/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package all

import (
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/input/httppoll"
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/input/mqtt"
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/input/opcua"
)
