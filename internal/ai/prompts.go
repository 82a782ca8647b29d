package ai

const analyzePrompt = `다음은 사용자가 기록한 개인 경험 목록입니다. 사용자가 자신을 더 잘 이해할 수 있도록 분석해주세요.

도출해야 할 내용:
1. 좋아하는 것 (흥미)
2. 잘하는 것 (강점)
3. 문제 해결 스타일
4. 에너지 방향 (무엇이 에너지를 주고 무엇이 소모시키는지)
5. 이러한 통찰을 바탕으로 한 앞으로의 실행 계획
6. 경험 간의 관계: 어떤 경험이 다른 경험으로 이어졌는지, 비슷한 역량을 공유하는지, 성장 궤적을 이루는지 찾아주세요. sourceId와 targetId는 반드시 아래 목록의 id를 사용하세요.

경험 목록:
%s

다음 JSON 형식으로만 응답하세요. **모든 값은 한국어로 작성하세요.**
{
  "strengths": ["강점 1", "강점 2"],
  "interests": ["흥미 1", "흥미 2"],
  "problemSolvingStyle": "문제 해결 스타일 설명",
  "energyDirection": "에너지 방향성 설명",
  "actionPlan": ["액션 플랜 1", "액션 플랜 2"],
  "summary": "따뜻하고 격려하는 요약 문단 (존댓말 사용)",
  "relationships": [
    {"sourceId": "exp_id_1", "targetId": "exp_id_2", "reason": "연결 이유"}
  ]
}`

const checklistPrompt = `다음 실행 계획 항목과 사용자의 과거 경험을 바탕으로, 목표 달성에 도움이 되는 실용적인 5단계 체크리스트를 만들어주세요.

실행 계획: %s

사용자의 과거 경험 제목:
%s

{"checklist": ["단계 1", "단계 2", "단계 3", "단계 4", "단계 5"]} 형식의 JSON으로만 한국어로 응답하세요.`

const extractFields = `각 경험에 대해 다음 정보를 추출하세요:
- title: 경험의 핵심 제목 (예: 'OO 기업 인턴', 'XX 공모전 대상')
- startDate: 시작일 (YYYY.MM.DD 형식). 연도만 알면 YYYY.01.01로, 모르면 추측하세요.
- endDate: 종료일 (YYYY.MM.DD 형식). 단기 활동이면 시작일과 동일하게.
- description: 무엇을 했는지, 어떤 역할을 맡았는지, 어떤 성과를 냈는지에 대한 요약.
- category: ['대외활동', '공모전', '아르바이트', '교내활동', '성적'] 중 하나를 선택하거나 적절한 카테고리 제안.

결과는 {"experiences": [ ... ]} 형식의 JSON으로만 반환하세요. 찾은 경험이 없으면 빈 배열을 반환하세요.`

const fileExtractPrompt = `제공된 파일(이미지, PDF, 또는 텍스트)은 사용자의 포트폴리오, 이력서, 또는 활동 기록입니다.
이 파일에서 사용자의 '인생지도(Life Map)'를 구성할 수 있는 모든 유의미한 경험들을 추출하세요.

` + extractFields

const urlExtractPrompt = `아래 내용은 사용자의 포트폴리오, 이력서, 링크드인 프로필, 또는 활동 기록이 담긴 웹페이지의 본문입니다.
이 웹페이지의 내용을 분석하여 사용자의 '인생지도(Life Map)'를 구성할 수 있는 모든 유의미한 경험들을 추출하세요.

` + extractFields
