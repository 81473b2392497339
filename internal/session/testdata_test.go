package session

const testInstance = `NAME: tiny
LOCATION: test
TYPE: PDPTW
SIZE: 3
CAPACITY: 10
NODES
0 0 0 0 0 100 0 0 0
1 3 4 5 0 100 2 1 0
2 6 8 -5 0 100 2 0 1
EDGES
0 5 10
5 0 5
10 5 0
EOF
`

const testSolution = `Instance name : tiny
Authors : tester
Date : 2024
Reference : none
Solution
Route 1 : 1 2
Route 2 : 2 9
`
