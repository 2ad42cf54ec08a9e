// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

// standard contains the definitions which are always known to New registries
const standard = `
iso ::= { 1 }
org ::= { iso 3 }
dod ::= { org 6 }
internet ::= { dod 1 }
mgmt ::= { internet 2 }
private ::= { internet 4 }
enterprises ::= { private 1 }
mib2 ::= { mgmt 1 }

-- system group
system ::= { mib2 1 }
sysDescr ::= { system 1 } SYNTAX string
sysObjectID ::= { system 2 } SYNTAX oid
sysUpTime ::= { system 3 } SYNTAX timeticks HINT "ticks"
sysContact ::= { system 4 } SYNTAX string
sysName ::= { system 5 } SYNTAX string
sysLocation ::= { system 6 } SYNTAX string
sysServices ::= { system 7 } SYNTAX integer

-- interfaces group
interfaces ::= { mib2 2 }
ifNumber ::= { interfaces 1 } SYNTAX integer
ifTable ::= { interfaces 2 }
ifEntry ::= { ifTable 1 }
ifIndex ::= { ifEntry 1 } SYNTAX integer
ifDescr ::= { ifEntry 2 } SYNTAX string
ifType ::= { ifEntry 3 } SYNTAX integer
	ENUM { other = 1, ethernetCsmacd = 6, softwareLoopback = 24, tunnel = 131 }
ifMtu ::= { ifEntry 4 } SYNTAX integer HINT "comma"
ifSpeed ::= { ifEntry 5 } SYNTAX gauge32 HINT "bps"
ifPhysAddress ::= { ifEntry 6 } SYNTAX string HINT "hex"
ifAdminStatus ::= { ifEntry 7 } SYNTAX integer ENUM { up = 1, down = 2, testing = 3 }
ifOperStatus ::= { ifEntry 8 } SYNTAX integer
	ENUM { up = 1, down = 2, testing = 3, unknown = 4, dormant = 5, notPresent = 6, lowerLayerDown = 7 }
ifLastChange ::= { ifEntry 9 } SYNTAX timeticks HINT "ticks"
ifInOctets ::= { ifEntry 10 } SYNTAX counter32 HINT "bytes"
ifInUcastPkts ::= { ifEntry 11 } SYNTAX counter32 HINT "comma"
ifInErrors ::= { ifEntry 14 } SYNTAX counter32 HINT "comma"
ifOutOctets ::= { ifEntry 16 } SYNTAX counter32 HINT "bytes"
ifOutUcastPkts ::= { ifEntry 17 } SYNTAX counter32 HINT "comma"
ifOutErrors ::= { ifEntry 20 } SYNTAX counter32 HINT "comma"

-- ip address table
ip ::= { mib2 4 }
ipAddrTable ::= { ip 20 }
ipAddrEntry ::= { ipAddrTable 1 }
ipAdEntAddr ::= { ipAddrEntry 1 } SYNTAX ipaddress
ipAdEntIfIndex ::= { ipAddrEntry 2 } SYNTAX integer
ipAdEntNetMask ::= { ipAddrEntry 3 } SYNTAX ipaddress
`
